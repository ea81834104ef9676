// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned by Store.Save when a record with the same
	// id already exists. Ids are UUIDs generated at submission time, so this
	// indicates a programming error rather than a recoverable condition.
	ErrDuplicateKey = errors.New("kioskqueue: duplicate record id")

	// ErrNotFound is returned by per-record store operations when the id is
	// absent. The sync pass treats it as benign (the record was removed by
	// retention cleanup between the snapshot and the write).
	ErrNotFound = errors.New("kioskqueue: record not found")
)

// PersistenceError wraps a local storage failure. It is fatal to the single
// operation that triggered it and is never retried by the queue itself; the
// caller may retry the whole submission.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("kioskqueue: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
