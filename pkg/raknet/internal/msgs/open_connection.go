// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"fmt"
	"io"
	"net"
)

// MtuPadding is the difference between the padding of an OPEN_CONNECTION_REQUEST_1 and the attempted MTU.
const MtuPadding = 28

// OpenConnectionRequestOne is the OPEN_CONNECTION_REQUEST_1, probing a MTU by its own padded size.
type OpenConnectionRequestOne struct {
	ProtocolVersion uint8
	Mtu             uint16
}

// NewOpenConnectionRequestOne for the supported ProtocolVersion and an attempted MTU.
func NewOpenConnectionRequestOne(mtu uint16) *OpenConnectionRequestOne {
	return &OpenConnectionRequestOne{
		ProtocolVersion: ProtocolVersion,
		Mtu:             mtu,
	}
}

func (req OpenConnectionRequestOne) String() string {
	return fmt.Sprintf("OPEN_CONNECTION_REQUEST_1(protocol=%d, MTU=%d)", req.ProtocolVersion, req.Mtu)
}

func (req OpenConnectionRequestOne) Marshal(w io.Writer) error {
	if req.Mtu < MtuPadding {
		return fmt.Errorf("OPEN_CONNECTION_REQUEST_1's MTU %d is too small", req.Mtu)
	}

	if err := writeFields(w, OPEN_CONNECTION_REQUEST_1); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	if err := writeFields(w, req.ProtocolVersion); err != nil {
		return err
	}

	_, err := w.Write(make([]byte, int(req.Mtu)-MtuPadding))
	return err
}

func (req *OpenConnectionRequestOne) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "OPEN_CONNECTION_REQUEST_1", OPEN_CONNECTION_REQUEST_1); err != nil {
		return err
	}
	if err := readMagic(r); err != nil {
		return err
	}
	if err := readFields(r, &req.ProtocolVersion); err != nil {
		return err
	}

	padding, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	req.Mtu = uint16(len(padding) + MtuPadding)
	return nil
}

// OpenConnectionReplyOne is the OPEN_CONNECTION_REPLY_1, answering an OPEN_CONNECTION_REQUEST_1.
type OpenConnectionReplyOne struct {
	ServerGuid int64
	Security   bool
	Mtu        uint16
}

func (rep OpenConnectionReplyOne) String() string {
	return fmt.Sprintf("OPEN_CONNECTION_REPLY_1(guid=%d, MTU=%d)", rep.ServerGuid, rep.Mtu)
}

func (rep OpenConnectionReplyOne) Marshal(w io.Writer) error {
	if err := writeFields(w, OPEN_CONNECTION_REPLY_1); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	return writeFields(w, rep.ServerGuid, rep.Security, rep.Mtu)
}

func (rep *OpenConnectionReplyOne) Unmarshal(r io.Reader) error {
	if err := readHeader(r, "OPEN_CONNECTION_REPLY_1", OPEN_CONNECTION_REPLY_1); err != nil {
		return err
	}
	if err := readMagic(r); err != nil {
		return err
	}
	return readFields(r, &rep.ServerGuid, &rep.Security, &rep.Mtu)
}

// OpenConnectionRequestTwo is the OPEN_CONNECTION_REQUEST_2, confirming the negotiated MTU.
type OpenConnectionRequestTwo struct {
	ServerAddress *net.UDPAddr
	Mtu           uint16
	ClientGuid    int64
}

func (req OpenConnectionRequestTwo) String() string {
	return fmt.Sprintf("OPEN_CONNECTION_REQUEST_2(server=%v, MTU=%d, guid=%d)", req.ServerAddress, req.Mtu, req.ClientGuid)
}

func (req OpenConnectionRequestTwo) Marshal(w io.Writer) error {
	if err := writeFields(w, OPEN_CONNECTION_REQUEST_2); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	if err := writeAddress(w, req.ServerAddress); err != nil {
		return err
	}
	return writeFields(w, req.Mtu, req.ClientGuid)
}

func (req *OpenConnectionRequestTwo) Unmarshal(r io.Reader) (err error) {
	if err = readHeader(r, "OPEN_CONNECTION_REQUEST_2", OPEN_CONNECTION_REQUEST_2); err != nil {
		return
	}
	if err = readMagic(r); err != nil {
		return
	}
	if req.ServerAddress, err = readAddress(r); err != nil {
		return
	}
	return readFields(r, &req.Mtu, &req.ClientGuid)
}

// OpenConnectionReplyTwo is the OPEN_CONNECTION_REPLY_2, after which the server created a session.
type OpenConnectionReplyTwo struct {
	ServerGuid    int64
	ClientAddress *net.UDPAddr
	Mtu           uint16
	Encryption    bool
}

func (rep OpenConnectionReplyTwo) String() string {
	return fmt.Sprintf("OPEN_CONNECTION_REPLY_2(guid=%d, client=%v, MTU=%d)", rep.ServerGuid, rep.ClientAddress, rep.Mtu)
}

func (rep OpenConnectionReplyTwo) Marshal(w io.Writer) error {
	if err := writeFields(w, OPEN_CONNECTION_REPLY_2); err != nil {
		return err
	}
	if err := writeMagic(w); err != nil {
		return err
	}
	if err := writeFields(w, rep.ServerGuid); err != nil {
		return err
	}
	if err := writeAddress(w, rep.ClientAddress); err != nil {
		return err
	}
	return writeFields(w, rep.Mtu, rep.Encryption)
}

func (rep *OpenConnectionReplyTwo) Unmarshal(r io.Reader) (err error) {
	if err = readHeader(r, "OPEN_CONNECTION_REPLY_2", OPEN_CONNECTION_REPLY_2); err != nil {
		return
	}
	if err = readMagic(r); err != nil {
		return
	}
	if err = readFields(r, &rep.ServerGuid); err != nil {
		return
	}
	if rep.ClientAddress, err = readAddress(r); err != nil {
		return
	}
	return readFields(r, &rep.Mtu, &rep.Encryption)
}
