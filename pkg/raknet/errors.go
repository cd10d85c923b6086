// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"errors"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/stages"
)

var (
	ErrInvalidChannel     = session.ErrInvalidChannel
	ErrMessageTooLarge    = session.ErrMessageTooLarge
	ErrTimeout            = session.ErrTimeout
	ErrPacketFlood        = session.ErrPacketFlood
	ErrDisconnected       = session.ErrDisconnected
	ErrDisconnectNotified = session.ErrDisconnectNotified
	ErrConnectionFailed   = session.ErrConnectionFailed
	ErrClosed             = session.ErrClosed

	ErrServerOffline        = stages.ErrServerOffline
	ErrInvalidMtu           = stages.ErrInvalidMtu
	ErrGuidMismatch         = stages.ErrGuidMismatch
	ErrAlreadyConnected     = stages.ErrAlreadyConnected
	ErrNoFreeConnections    = stages.ErrNoFreeConnections
	ErrConnectionBanned     = stages.ErrConnectionBanned
	ErrIncompatibleProtocol = stages.ErrIncompatibleProtocol

	// ErrNotStarted for operations requiring a started Listener or a connected Client.
	ErrNotStarted = errors.New("not started")
)

// HandshakeError is returned by Client.Connect if the server refused or did not reply.
type HandshakeError = stages.HandshakeError

// ErrorCode of a HandshakeError.
type ErrorCode = stages.ErrorCode

const (
	InvalidReply         = stages.InvalidReply
	AlreadyConnected     = stages.AlreadyConnected
	NoFreeConnections    = stages.NoFreeConnections
	Banned               = stages.Banned
	IncompatibleProtocol = stages.IncompatibleProtocol
	Offline              = stages.Offline
)
