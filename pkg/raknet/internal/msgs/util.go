// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic is the offline message identifier, prefixed to all handshake packets.
var Magic = [16]byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78}

// ErrInvalidMagic is returned if an offline message does not carry the Magic.
var ErrInvalidMagic = errors.New("invalid offline message magic")

func writeMagic(w io.Writer) error {
	_, err := w.Write(Magic[:])
	return err
}

func readMagic(r io.Reader) error {
	var magic [16]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return err
	} else if magic != Magic {
		return ErrInvalidMagic
	}
	return nil
}

// writeTriad writes the lower 24 bits of v as a little-endian triad.
func writeTriad(w io.Writer, v uint32) error {
	_, err := w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
	return err
}

// readTriad reads a little-endian triad.
func readTriad(r io.Reader) (uint32, error) {
	var b [3]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// writeFields writes each field big-endian, stopping at the first error.
func writeFields(w io.Writer, fields ...interface{}) error {
	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}
	return nil
}

// readFields reads into each field pointer big-endian, stopping at the first error.
func readFields(r io.Reader, fields ...interface{}) error {
	for _, field := range fields {
		if err := binary.Read(r, binary.BigEndian, field); err != nil {
			return err
		}
	}
	return nil
}

// readHeader reads the leading message id and compares it against the expected one.
func readHeader(r io.Reader, name string, expected uint8) error {
	var id uint8
	if err := binary.Read(r, binary.BigEndian, &id); err != nil {
		return err
	} else if id != expected {
		return fmt.Errorf("%s's message id is wrong: %x instead of %x", name, id, expected)
	}
	return nil
}

// MarshalBytes serializes a Message into a new byte slice.
func MarshalBytes(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Marshal(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBytes parses a single Message from a byte slice, e.g., a datagram or a delivered payload.
func UnmarshalBytes(b []byte) (Message, error) {
	return ReadMessage(bytes.NewReader(b))
}
