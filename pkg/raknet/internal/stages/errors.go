// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stages

import (
	"errors"
	"fmt"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// ErrorCode classifies a HandshakeError.
type ErrorCode uint8

const (
	// InvalidReply for a malformed or inconsistent reply, e.g., a too small MTU or a changed server guid.
	InvalidReply ErrorCode = iota + 1
	// AlreadyConnected if the server already knows this address or guid.
	AlreadyConnected
	// NoFreeConnections if the server is full.
	NoFreeConnections
	// Banned if this address is banned by the server.
	Banned
	// IncompatibleProtocol if the server speaks another protocol version.
	IncompatibleProtocol
	// Offline if the server did not reply.
	Offline
)

func (code ErrorCode) String() string {
	switch code {
	case InvalidReply:
		return "invalid reply"
	case AlreadyConnected:
		return "already connected"
	case NoFreeConnections:
		return "no free incoming connections"
	case Banned:
		return "banned"
	case IncompatibleProtocol:
		return "incompatible protocol"
	case Offline:
		return "offline"
	default:
		return fmt.Sprintf("unknown error code %d", uint8(code))
	}
}

var (
	ErrServerOffline        = errors.New("server is offline")
	ErrInvalidMtu           = errors.New("invalid MTU")
	ErrGuidMismatch         = errors.New("server guid changed during handshake")
	ErrAlreadyConnected     = errors.New("already connected")
	ErrNoFreeConnections    = errors.New("no free incoming connections")
	ErrConnectionBanned     = errors.New("connection banned")
	ErrIncompatibleProtocol = errors.New("incompatible protocol version")
)

// HandshakeError aborts a handshake.
type HandshakeError struct {
	Msg   string
	Code  ErrorCode
	Cause error
}

func NewHandshakeError(message string, code ErrorCode, cause error) *HandshakeError {
	return &HandshakeError{
		Msg:   message,
		Code:  code,
		Cause: cause,
	}
}

func (err *HandshakeError) Error() string {
	return fmt.Sprintf("%s (%v)", err.Msg, err.Code)
}

func (err *HandshakeError) Unwrap() error {
	return err.Cause
}

// errorPacket maps a server's error packet to a HandshakeError, or returns nil for any other message.
func errorPacket(msg msgs.Message) error {
	switch msg := msg.(type) {
	case *msgs.SignalMessage:
		switch msg.Id {
		case msgs.ALREADY_CONNECTED:
			return NewHandshakeError("server reports an existing connection", AlreadyConnected, ErrAlreadyConnected)
		case msgs.NO_FREE_INCOMING_CONNECTIONS:
			return NewHandshakeError("server has no free connections", NoFreeConnections, ErrNoFreeConnections)
		}

	case *msgs.ConnectionBanned:
		return NewHandshakeError("server banned this client", Banned, ErrConnectionBanned)

	case *msgs.IncompatibleProtocolVersion:
		return NewHandshakeError(
			fmt.Sprintf("server speaks protocol %d instead of %d", msg.ProtocolVersion, msgs.ProtocolVersion),
			IncompatibleProtocol, ErrIncompatibleProtocol)
	}

	return nil
}
