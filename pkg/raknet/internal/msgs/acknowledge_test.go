// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"reflect"
	"testing"
)

func TestAcknowledgeMessage(t *testing.T) {
	data := []byte{
		// Message id:
		0xC0,
		// Record count:
		0x00, 0x02,
		// Ranged record 1-3:
		0x00, 0x01, 0x00, 0x00, 0x03, 0x00, 0x00,
		// Single record 5:
		0x01, 0x05, 0x00, 0x00,
	}

	ack := NewAcknowledgeMessage(NewRecord(2), NewRecord(1), NewRecord(5), NewRecord(3))

	var buf bytes.Buffer
	if err := ack.Marshal(&buf); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(buf.Bytes(), data) {
		t.Fatalf("Data does not match, expected %x and got %x", data, buf.Bytes())
	}

	msg, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}

	ackIn, ok := msg.(*AcknowledgeMessage)
	if !ok {
		t.Fatalf("ReadMessage returned %T", msg)
	} else if !ackIn.IsAcknowledgement() {
		t.Fatal("ACK was parsed as NACK")
	}

	expected := []Record{NewRecord(1), NewRecord(2), NewRecord(3), NewRecord(5)}
	if !reflect.DeepEqual(ackIn.Records, expected) {
		t.Fatalf("Records are %v, expected %v", ackIn.Records, expected)
	}
}

func TestNotAcknowledgeMessage(t *testing.T) {
	nack := NewNotAcknowledgeMessage(NewRangedRecord(0x010000, 0x010002))

	data, err := MarshalBytes(nack)
	if err != nil {
		t.Fatal(err)
	} else if data[0] != NACK {
		t.Fatalf("NACK's message id is %x", data[0])
	}

	msg, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatal(err)
	}

	nackIn := msg.(*AcknowledgeMessage)
	if nackIn.IsAcknowledgement() {
		t.Fatal("NACK was parsed as ACK")
	} else if l := len(nackIn.Records); l != 3 {
		t.Fatalf("NACK has %d records instead of 3", l)
	} else if nackIn.Records[2].Index != 0x010002 {
		t.Fatalf("last record is %v", nackIn.Records[2])
	}
}

func TestAcknowledgeMessageTooLarge(t *testing.T) {
	data := []byte{0xC0, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF}

	if _, err := UnmarshalBytes(data); err == nil {
		t.Fatal("an acknowledgement spanning all sequence numbers was accepted")
	}
}
