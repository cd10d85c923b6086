// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	flagReliabilityShift       = 5
	flagReliability      uint8 = 0xE0
	flagSplit            uint8 = 0x10

	encapsulatedMinimumSize    = 3
	encapsulatedIndexSize      = 3
	encapsulatedOrderSize      = 4
	encapsulatedSplitFieldSize = 10
)

// ErrMissingAckRecord is returned when marshalling a receipt-requiring message without an assigned Record.
var ErrMissingAckRecord = errors.New("encapsulated message requires an ack record")

// EncapsulatedMessage is the atomic unit of payload carried within a CustomFrame.
type EncapsulatedMessage struct {
	Reliability Reliability

	// AckRecord is the Record of the datagram this message was sent in. It is only set for receipt-requiring
	// reliabilities and never transmitted.
	AckRecord *Record

	// MessageIndex is present for reliable messages.
	MessageIndex uint32

	// OrderIndex and OrderChannel are present for ordered or sequenced messages.
	OrderIndex   uint32
	OrderChannel uint8

	// Split, SplitCount, SplitId and SplitIndex are present for parts of a split message.
	Split      bool
	SplitCount uint32
	SplitId    uint16
	SplitIndex uint32

	Payload []byte
}

// HeaderSize of an EncapsulatedMessage of the given Reliability without its payload.
func HeaderSize(rel Reliability, split bool) int {
	size := encapsulatedMinimumSize
	if rel.IsReliable() {
		size += encapsulatedIndexSize
	}
	if rel.IsOrdered() || rel.IsSequenced() {
		size += encapsulatedOrderSize
	}
	if split {
		size += encapsulatedSplitFieldSize
	}
	return size
}

// Size of this EncapsulatedMessage on the wire.
func (em EncapsulatedMessage) Size() int {
	return HeaderSize(em.Reliability, em.Split) + len(em.Payload)
}

// Clone returns a copy of this EncapsulatedMessage, which shares no memory with the original.
func (em EncapsulatedMessage) Clone() EncapsulatedMessage {
	clone := em
	if em.AckRecord != nil {
		record := *em.AckRecord
		clone.AckRecord = &record
	}
	if em.Payload != nil {
		clone.Payload = append([]byte(nil), em.Payload...)
	}
	return clone
}

func (em EncapsulatedMessage) String() string {
	return fmt.Sprintf("Encapsulated(%v, message index=%d, order index=%d, channel=%d, split=%t %d/%d id=%d, %d bytes)",
		em.Reliability, em.MessageIndex, em.OrderIndex, em.OrderChannel,
		em.Split, em.SplitIndex, em.SplitCount, em.SplitId, len(em.Payload))
}

func (em EncapsulatedMessage) Marshal(w io.Writer) error {
	if !em.Reliability.IsValid() {
		return ErrInvalidReliability
	} else if em.Reliability.RequiresAck() && em.AckRecord == nil {
		return ErrMissingAckRecord
	} else if len(em.Payload)*8 > math.MaxUint16 {
		return fmt.Errorf("encapsulated payload of %d bytes exceeds the bit length field", len(em.Payload))
	}

	flags := uint8(em.Reliability) << flagReliabilityShift
	if em.Split {
		flags |= flagSplit
	}

	if err := writeFields(w, flags, uint16(len(em.Payload)*8)); err != nil {
		return err
	}

	if em.Reliability.IsReliable() {
		if err := writeTriad(w, em.MessageIndex); err != nil {
			return err
		}
	}

	if em.Reliability.IsOrdered() || em.Reliability.IsSequenced() {
		if err := writeTriad(w, em.OrderIndex); err != nil {
			return err
		}
		if err := writeFields(w, em.OrderChannel); err != nil {
			return err
		}
	}

	if em.Split {
		if err := writeFields(w, em.SplitCount, em.SplitId, em.SplitIndex); err != nil {
			return err
		}
	}

	_, err := w.Write(em.Payload)
	return err
}

func (em *EncapsulatedMessage) Unmarshal(r io.Reader) error {
	var (
		flags  uint8
		length uint16
		err    error
	)

	if err = readFields(r, &flags, &length); err != nil {
		return err
	}

	em.Reliability = Reliability((flags & flagReliability) >> flagReliabilityShift)
	if !em.Reliability.IsValid() {
		return ErrInvalidReliability
	}
	em.Split = flags&flagSplit != 0

	if em.Reliability.IsReliable() {
		if em.MessageIndex, err = readTriad(r); err != nil {
			return err
		}
	}

	if em.Reliability.IsOrdered() || em.Reliability.IsSequenced() {
		if em.OrderIndex, err = readTriad(r); err != nil {
			return err
		}
		if err = readFields(r, &em.OrderChannel); err != nil {
			return err
		}
	}

	if em.Split {
		if err = readFields(r, &em.SplitCount, &em.SplitId, &em.SplitIndex); err != nil {
			return err
		}
	}

	em.Payload = make([]byte, (int(length)+7)/8)
	if _, err = io.ReadFull(r, em.Payload); err != nil {
		return fmt.Errorf("reading encapsulated payload errored: %w", err)
	}

	return nil
}
