// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bytes"
	"fmt"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// Role of a Session in the login exchange, either ServerRole or ClientRole.
//
// The methods are called while the Session is locked.
type Role interface {
	// Initial State of a new Session.
	Initial() State

	// Login is called once for a new Session, e.g., to send the first login message.
	Login(s *Session) error

	// HandleLogin inspects a delivered message. Handled messages are not passed on to the application.
	HandleLogin(s *Session, payload []byte) (handled bool, err error)
}

// ServerRole answers a client's CONNECTION_REQUEST and waits for its NEW_INCOMING_CONNECTION.
type ServerRole struct{}

// NewServerRole for a Session accepted by a listener.
func NewServerRole() *ServerRole {
	return &ServerRole{}
}

func (*ServerRole) Initial() State {
	return Disconnected
}

func (*ServerRole) Login(_ *Session) error {
	return nil
}

func (*ServerRole) HandleLogin(s *Session, payload []byte) (handled bool, err error) {
	switch payload[0] {
	case msgs.CONNECTION_REQUEST:
		handled = true
		if s.state != Disconnected {
			return
		}

		var req msgs.ConnectionRequest
		if err = unmarshalPayload(payload, &req); err != nil {
			return
		}

		if req.ClientGuid != s.guid || req.Security {
			s.log().WithField("request", req).Warn("Refusing connection request")
			if _, sendErr := s.sendSignal(msgs.CONNECTION_ATTEMPT_FAILED, msgs.Unreliable); sendErr != nil {
				s.log().WithError(sendErr).Warn("Failed to queue connection attempt failed")
			}
			s.flushSendQueue(s.clock.Now())
			err = ErrConnectionFailed
			return
		}

		cra := msgs.ConnectionRequestAccepted{
			ClientAddress:   s.address,
			ClientTimestamp: req.Timestamp,
			ServerTimestamp: s.timestamp(),
		}
		if _, err = s.sendPacket(msgs.ReliableOrdered, 0, &cra); err != nil {
			return
		}
		s.setState(Handshaking)

	case msgs.NEW_INCOMING_CONNECTION:
		handled = true
		if s.state != Handshaking {
			return
		}

		var nic msgs.NewIncomingConnection
		if err = unmarshalPayload(payload, &nic); err != nil {
			return
		}
		s.setState(Connected)
	}
	return
}

// ClientRole sends a CONNECTION_REQUEST and completes the login after the server's CONNECTION_REQUEST_ACCEPTED.
type ClientRole struct {
	clientGuid int64
}

// NewClientRole for a Session created after a finished handshake.
func NewClientRole(clientGuid int64) *ClientRole {
	return &ClientRole{clientGuid: clientGuid}
}

func (*ClientRole) Initial() State {
	return Handshaking
}

func (cr *ClientRole) Login(s *Session) error {
	req := msgs.ConnectionRequest{
		ClientGuid: cr.clientGuid,
		Timestamp:  s.timestamp(),
		Security:   false,
	}
	_, err := s.sendPacket(msgs.ReliableOrdered, 0, &req)
	return err
}

func (*ClientRole) HandleLogin(s *Session, payload []byte) (handled bool, err error) {
	switch payload[0] {
	case msgs.CONNECTION_REQUEST_ACCEPTED:
		handled = true
		if s.state != Handshaking {
			return
		}

		var cra msgs.ConnectionRequestAccepted
		if err = unmarshalPayload(payload, &cra); err != nil {
			return
		}

		nic := msgs.NewIncomingConnection{
			ServerAddress:   s.address,
			ServerTimestamp: cra.ServerTimestamp,
			ClientTimestamp: cra.ClientTimestamp,
		}
		if _, err = s.sendPacket(msgs.Reliable, 0, &nic); err != nil {
			return
		}
		s.setState(Connected)

	case msgs.CONNECTION_ATTEMPT_FAILED:
		handled = true
		err = ErrConnectionFailed
	}
	return
}

func unmarshalPayload(payload []byte, msg msgs.Message) error {
	if err := msg.Unmarshal(bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("parsing login message %x: %w", payload[0], err)
	}
	return nil
}
