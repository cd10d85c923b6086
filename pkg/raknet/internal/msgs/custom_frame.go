// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"fmt"
	"io"
)

// CustomFrameHeaderSize is the size of a CustomFrame without any messages.
const CustomFrameHeaderSize = 4

// MaxSequenceNumber is the largest datagram sequence number, which wraps afterwards.
const MaxSequenceNumber uint32 = 1<<24 - 1

// CustomFrame is a CUSTOM datagram, carrying one or more EncapsulatedMessages.
type CustomFrame struct {
	// Id is one of CUSTOM_0 to CUSTOM_F; its value is informational only. A zero Id is sent as CUSTOM_4.
	Id             uint8
	SequenceNumber uint32
	Messages       []*EncapsulatedMessage
}

// NewCustomFrame creates a new CUSTOM_4 frame.
func NewCustomFrame(sequenceNumber uint32, messages ...*EncapsulatedMessage) *CustomFrame {
	return &CustomFrame{
		Id:             CUSTOM_4,
		SequenceNumber: sequenceNumber,
		Messages:       messages,
	}
}

// Size of this CustomFrame on the wire.
func (cf CustomFrame) Size() int {
	size := CustomFrameHeaderSize
	for _, msg := range cf.Messages {
		size += msg.Size()
	}
	return size
}

func (cf CustomFrame) String() string {
	return fmt.Sprintf("CUSTOM(sequence number=%d, messages=%d)", cf.SequenceNumber, len(cf.Messages))
}

// Marshal this CustomFrame. The AckRecord of each receipt-requiring message is set to this frame's sequence number.
func (cf CustomFrame) Marshal(w io.Writer) error {
	id := cf.Id
	if id == 0 {
		id = CUSTOM_4
	} else if !IsCustomFrame(id) {
		return fmt.Errorf("CUSTOM frame's message id %x is out of range", id)
	}

	if err := writeFields(w, id); err != nil {
		return err
	}
	if err := writeTriad(w, cf.SequenceNumber); err != nil {
		return err
	}

	for _, msg := range cf.Messages {
		if msg.Reliability.RequiresAck() {
			record := NewRecord(cf.SequenceNumber)
			msg.AckRecord = &record
		}

		if err := msg.Marshal(w); err != nil {
			return err
		}
	}

	return nil
}

func (cf *CustomFrame) Unmarshal(r io.Reader) error {
	if err := readFields(r, &cf.Id); err != nil {
		return err
	} else if !IsCustomFrame(cf.Id) {
		return fmt.Errorf("CUSTOM frame's message id %x is out of range", cf.Id)
	}

	var err error
	if cf.SequenceNumber, err = readTriad(r); err != nil {
		return err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	br := bytes.NewReader(body)
	cf.Messages = nil
	for br.Len() >= encapsulatedMinimumSize {
		msg := new(EncapsulatedMessage)
		if err := msg.Unmarshal(br); err != nil {
			return fmt.Errorf("CUSTOM frame %d: %w", cf.SequenceNumber, err)
		}
		cf.Messages = append(cf.Messages, msg)
	}

	return nil
}
