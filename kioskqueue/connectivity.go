// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import "sync/atomic"

// Connectivity reports whether the device currently has network access.
// The sync pass consults it once per pass; when offline the whole pass is a
// no-op with zero store mutations and zero delivery attempts.
type Connectivity interface {
	Online() bool
}

// SwitchConnectivity is a flag-based Connectivity the host application flips
// from its own network monitoring. Starts online.
type SwitchConnectivity struct {
	offline int32
}

// NewSwitchConnectivity returns a switch in the given initial state.
func NewSwitchConnectivity(online bool) *SwitchConnectivity {
	s := &SwitchConnectivity{}
	s.SetOnline(online)
	return s
}

// Online reports the current state.
func (s *SwitchConnectivity) Online() bool { return atomic.LoadInt32(&s.offline) == 0 }

// SetOnline flips the state.
func (s *SwitchConnectivity) SetOnline(online bool) {
	if online {
		atomic.StoreInt32(&s.offline, 0)
	} else {
		atomic.StoreInt32(&s.offline, 1)
	}
}

// alwaysOnline is the default when the host wires no connectivity signal;
// delivery failures then surface as ordinary send failures with backoff.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }
