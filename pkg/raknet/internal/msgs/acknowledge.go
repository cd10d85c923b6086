// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxAcknowledgeIndices limits the amount of sequence numbers a received acknowledgement might expand to.
const maxAcknowledgeIndices = 1 << 16

const (
	recordRanged uint8 = 0x00
	recordSingle uint8 = 0x01
)

// AcknowledgeMessage is either an ACK or a NACK for a set of datagram sequence numbers.
//
// Records are condensed when marshalled and simplified when unmarshalled.
type AcknowledgeMessage struct {
	Id      uint8
	Records []Record
}

// NewAcknowledgeMessage creates an ACK for the given Records.
func NewAcknowledgeMessage(records ...Record) *AcknowledgeMessage {
	return &AcknowledgeMessage{Id: ACK, Records: records}
}

// NewNotAcknowledgeMessage creates a NACK for the given Records.
func NewNotAcknowledgeMessage(records ...Record) *AcknowledgeMessage {
	return &AcknowledgeMessage{Id: NACK, Records: records}
}

// IsAcknowledgement checks if this is an ACK, opposed to a NACK.
func (am AcknowledgeMessage) IsAcknowledgement() bool {
	return am.Id == ACK
}

func (am AcknowledgeMessage) String() string {
	name := "NACK"
	if am.IsAcknowledgement() {
		name = "ACK"
	}
	return fmt.Sprintf("%s(%v)", name, am.Records)
}

func (am AcknowledgeMessage) Marshal(w io.Writer) error {
	if am.Id != ACK && am.Id != NACK {
		return fmt.Errorf("acknowledge message id %x is neither ACK nor NACK", am.Id)
	}

	records := Condense(am.Records)
	if len(records) > math.MaxUint16 {
		return fmt.Errorf("acknowledge message has too many records: %d", len(records))
	}

	if err := writeFields(w, am.Id, uint16(len(records))); err != nil {
		return err
	}

	for _, record := range records {
		if record.IsRanged() {
			if err := writeFields(w, recordRanged); err != nil {
				return err
			}
			if err := writeTriad(w, record.Index); err != nil {
				return err
			}
			if err := writeTriad(w, record.EndIndex); err != nil {
				return err
			}
		} else {
			if err := writeFields(w, recordSingle); err != nil {
				return err
			}
			if err := writeTriad(w, record.Index); err != nil {
				return err
			}
		}
	}

	return nil
}

func (am *AcknowledgeMessage) Unmarshal(r io.Reader) error {
	var count uint16
	if err := readFields(r, &am.Id, &count); err != nil {
		return err
	} else if am.Id != ACK && am.Id != NACK {
		return fmt.Errorf("acknowledge message id %x is neither ACK nor NACK", am.Id)
	}

	records := make([]Record, 0, count)
	expanded := 0
	for i := 0; i < int(count); i++ {
		var kind uint8
		if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
			return err
		}

		start, err := readTriad(r)
		if err != nil {
			return err
		}

		record := NewRecord(start)
		if kind == recordRanged {
			end, err := readTriad(r)
			if err != nil {
				return err
			}
			record = NewRangedRecord(start, end)
		}

		expanded += int(record.EndIndex-record.Index) + 1
		if expanded > maxAcknowledgeIndices {
			return fmt.Errorf("acknowledge message expands to more than %d sequence numbers", maxAcknowledgeIndices)
		}

		records = append(records, record)
	}

	am.Records = Simplify(records)
	return nil
}
