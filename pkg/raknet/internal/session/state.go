// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "fmt"

// State of a Session. States are ordered, a later State implies all earlier ones.
type State int

const (
	// Disconnected is both the initial state of a server session and the final state of every session.
	Disconnected State = iota

	// Handshaking during the login exchange.
	Handshaking

	// Connected after a completed login.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// AtLeast checks if this State is the given or a later one.
func (s State) AtLeast(other State) bool {
	return s >= other
}
