// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EnsureDeviceID returns the device identifier persisted in the local
// database, generating and storing a new one on first use. The id is stable
// across restarts; if the underlying database file is cleared the device
// identity is re-rolled, which the design accepts.
//
// Concurrent first callers converge on a single value: the one-row primary
// key makes the second insert fail, and the loser re-reads the winner's id.
func EnsureDeviceID(db *sql.DB) (string, error) {
	for {
		var deviceID string
		err := db.QueryRow(`SELECT device_id FROM _feedback_device WHERE id = 1`).Scan(&deviceID)
		if err == nil {
			return deviceID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to query device info: %w", err)
		}

		deviceID = uuid.New().String()
		_, err = db.Exec(`INSERT OR IGNORE INTO _feedback_device (id, device_id) VALUES (1, ?)`, deviceID)
		if err != nil {
			return "", fmt.Errorf("failed to insert device info: %w", err)
		}
		// Re-read: under a race the persisted row may belong to another caller.
	}
}
