// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"fmt"
	"io"
)

// ConnectedPing is the CONNECTED_PING, used to measure the latency of a session.
type ConnectedPing struct {
	Timestamp int64
}

func (cp ConnectedPing) String() string {
	return fmt.Sprintf("CONNECTED_PING(timestamp=%d)", cp.Timestamp)
}

func (cp ConnectedPing) Marshal(w io.Writer) error {
	return writeFields(w, CONNECTED_PING, cp.Timestamp)
}

func (cp *ConnectedPing) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "CONNECTED_PING", CONNECTED_PING); err != nil {
		return err
	}
	return readFields(r, &cp.Timestamp)
}

// ConnectedPong is the CONNECTED_PONG, answering a ConnectedPing with its timestamp.
type ConnectedPong struct {
	PingTimestamp int64
	PongTimestamp int64
}

func (cp ConnectedPong) String() string {
	return fmt.Sprintf("CONNECTED_PONG(ping=%d, pong=%d)", cp.PingTimestamp, cp.PongTimestamp)
}

func (cp ConnectedPong) Marshal(w io.Writer) error {
	return writeFields(w, CONNECTED_PONG, cp.PingTimestamp, cp.PongTimestamp)
}

func (cp *ConnectedPong) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "CONNECTED_PONG", CONNECTED_PONG); err != nil {
		return err
	}
	return readFields(r, &cp.PingTimestamp, &cp.PongTimestamp)
}

// SignalMessage is a message consisting only of its id, e.g., DETECT_LOST_CONNECTIONS, DISCONNECTION_NOTIFICATION,
// ALREADY_CONNECTED or NO_FREE_INCOMING_CONNECTIONS.
type SignalMessage struct {
	Id uint8
}

// NewSignalMessage for the given message id.
func NewSignalMessage(id uint8) *SignalMessage {
	return &SignalMessage{Id: id}
}

func (sm SignalMessage) String() string {
	return fmt.Sprintf("SIGNAL(%x)", sm.Id)
}

func (sm SignalMessage) Marshal(w io.Writer) error {
	return writeFields(w, sm.Id)
}

func (sm *SignalMessage) Unmarshal(r io.Reader) error {
	if err := readFields(r, &sm.Id); err != nil {
		return err
	}

	switch sm.Id {
	case DETECT_LOST_CONNECTIONS, CONNECTION_ATTEMPT_FAILED, ALREADY_CONNECTED,
		NO_FREE_INCOMING_CONNECTIONS, DISCONNECTION_NOTIFICATION, CONNECTION_LOST:
		return nil
	default:
		return fmt.Errorf("message id %x is no signal message", sm.Id)
	}
}

// ConnectionBanned is the CONNECTION_BANNED, refusing a banned client.
type ConnectionBanned struct {
	ServerGuid int64
}

func (cb ConnectionBanned) String() string {
	return fmt.Sprintf("CONNECTION_BANNED(guid=%d)", cb.ServerGuid)
}

func (cb ConnectionBanned) Marshal(w io.Writer) error {
	if err := writeFields(w, CONNECTION_BANNED); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	return writeFields(w, cb.ServerGuid)
}

func (cb *ConnectionBanned) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "CONNECTION_BANNED", CONNECTION_BANNED); err != nil {
		return err
	}
	if err := readMagic(r); err != nil {
		return err
	}
	return readFields(r, &cb.ServerGuid)
}

// IncompatibleProtocolVersion is the INCOMPATIBLE_PROTOCOL_VERSION, refusing a client of another protocol version.
type IncompatibleProtocolVersion struct {
	ProtocolVersion uint8
	ServerGuid      int64
}

func (ipv IncompatibleProtocolVersion) String() string {
	return fmt.Sprintf("INCOMPATIBLE_PROTOCOL_VERSION(protocol=%d, guid=%d)", ipv.ProtocolVersion, ipv.ServerGuid)
}

func (ipv IncompatibleProtocolVersion) Marshal(w io.Writer) error {
	if err := writeFields(w, INCOMPATIBLE_PROTOCOL_VERSION, ipv.ProtocolVersion); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	return writeFields(w, ipv.ServerGuid)
}

func (ipv *IncompatibleProtocolVersion) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "INCOMPATIBLE_PROTOCOL_VERSION", INCOMPATIBLE_PROTOCOL_VERSION); err != nil {
		return err
	}
	if err := readFields(r, &ipv.ProtocolVersion); err != nil {
		return err
	}
	if err := readMagic(r); err != nil {
		return err
	}
	return readFields(r, &ipv.ServerGuid)
}
