// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"fmt"
	"io"
	"net"
)

// systemAddressCount is the amount of system addresses sent within the login packets.
const systemAddressCount = 10

// timestampPairSize is the size of the two trailing timestamps of the login packets.
const timestampPairSize = 16

// ConnectionRequest is the CONNECTION_REQUEST, the first message sent over an established session by the client.
type ConnectionRequest struct {
	ClientGuid int64
	Timestamp  int64
	Security   bool
}

func (cr ConnectionRequest) String() string {
	return fmt.Sprintf("CONNECTION_REQUEST(guid=%d, timestamp=%d)", cr.ClientGuid, cr.Timestamp)
}

func (cr ConnectionRequest) Marshal(w io.Writer) error {
	return writeFields(w, CONNECTION_REQUEST, cr.ClientGuid, cr.Timestamp, cr.Security)
}

func (cr *ConnectionRequest) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "CONNECTION_REQUEST", CONNECTION_REQUEST); err != nil {
		return err
	}
	return readFields(r, &cr.ClientGuid, &cr.Timestamp, &cr.Security)
}

// writeSystemAddresses writes the null address systemAddressCount times.
func writeSystemAddresses(w io.Writer) error {
	for i := 0; i < systemAddressCount; i++ {
		if err := writeAddress(w, nullAddress); err != nil {
			return err
		}
	}
	return nil
}

// skipSystemAddresses reads addresses until only the timestamps are left. Implementations differ in the amount of
// system addresses, thus their count is not checked.
func skipSystemAddresses(br *bytes.Reader) error {
	for br.Len() > timestampPairSize {
		if _, err := readAddress(br); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionRequestAccepted is the CONNECTION_REQUEST_ACCEPTED, answering a ConnectionRequest.
type ConnectionRequestAccepted struct {
	ClientAddress   *net.UDPAddr
	ClientTimestamp int64
	ServerTimestamp int64
}

func (cra ConnectionRequestAccepted) String() string {
	return fmt.Sprintf("CONNECTION_REQUEST_ACCEPTED(client=%v, client timestamp=%d, server timestamp=%d)",
		cra.ClientAddress, cra.ClientTimestamp, cra.ServerTimestamp)
}

func (cra ConnectionRequestAccepted) Marshal(w io.Writer) error {
	if err := writeFields(w, CONNECTION_REQUEST_ACCEPTED); err != nil {
		return err
	}
	if err := writeAddress(w, cra.ClientAddress); err != nil {
		return err
	}
	// System index
	if err := writeFields(w, uint16(0)); err != nil {
		return err
	}
	if err := writeSystemAddresses(w); err != nil {
		return err
	}
	return writeFields(w, cra.ClientTimestamp, cra.ServerTimestamp)
}

func (cra *ConnectionRequestAccepted) Unmarshal(r io.Reader) (err error) {
	if err = readHeader(r, "CONNECTION_REQUEST_ACCEPTED", CONNECTION_REQUEST_ACCEPTED); err != nil {
		return
	}
	if cra.ClientAddress, err = readAddress(r); err != nil {
		return
	}

	var systemIndex uint16
	if err = readFields(r, &systemIndex); err != nil {
		return
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return
	}
	br := bytes.NewReader(body)
	if err = skipSystemAddresses(br); err != nil {
		return
	}
	return readFields(br, &cra.ClientTimestamp, &cra.ServerTimestamp)
}

// NewIncomingConnection is the NEW_INCOMING_CONNECTION, finishing the login on the client's side.
type NewIncomingConnection struct {
	ServerAddress   *net.UDPAddr
	ServerTimestamp int64
	ClientTimestamp int64
}

func (nic NewIncomingConnection) String() string {
	return fmt.Sprintf("NEW_INCOMING_CONNECTION(server=%v, server timestamp=%d, client timestamp=%d)",
		nic.ServerAddress, nic.ServerTimestamp, nic.ClientTimestamp)
}

func (nic NewIncomingConnection) Marshal(w io.Writer) error {
	if err := writeFields(w, NEW_INCOMING_CONNECTION); err != nil {
		return err
	}
	if err := writeAddress(w, nic.ServerAddress); err != nil {
		return err
	}
	if err := writeSystemAddresses(w); err != nil {
		return err
	}
	return writeFields(w, nic.ServerTimestamp, nic.ClientTimestamp)
}

func (nic *NewIncomingConnection) Unmarshal(r io.Reader) (err error) {
	if err = readHeader(r, "NEW_INCOMING_CONNECTION", NEW_INCOMING_CONNECTION); err != nil {
		return
	}
	if nic.ServerAddress, err = readAddress(r); err != nil {
		return
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return
	}
	br := bytes.NewReader(body)
	if err = skipSystemAddresses(br); err != nil {
		return
	}
	return readFields(br, &nic.ServerTimestamp, &nic.ClientTimestamp)
}
