// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import "errors"

var (
	// ErrInvalidChannel for an ordering channel outside of [0, MaxChannels).
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrMessageTooLarge for a message requiring more than MaxSplitCount parts.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrTimeout after SessionTimeout without inbound traffic.
	ErrTimeout = errors.New("session timed out")

	// ErrPacketFlood if the remote peer exceeds MaxPacketsPerSecond.
	ErrPacketFlood = errors.New("too many packets per second")

	// ErrDisconnected for a locally requested disconnect.
	ErrDisconnected = errors.New("disconnected")

	// ErrDisconnectNotified if the remote peer sent a DISCONNECTION_NOTIFICATION.
	ErrDisconnectNotified = errors.New("remote peer disconnected")

	// ErrConnectionFailed if the login was refused.
	ErrConnectionFailed = errors.New("connection attempt failed")

	// ErrClosed for operations on an already terminated session.
	ErrClosed = errors.New("session is closed")
)

// isExplicit checks if a termination reason is an intended disconnect rather than a failure.
func isExplicit(reason error) bool {
	return reason == nil || errors.Is(reason, ErrDisconnected) || errors.Is(reason, ErrDisconnectNotified)
}
