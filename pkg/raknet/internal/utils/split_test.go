// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package utils

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

func testGetRandomData(size int) []byte {
	payload := make([]byte, size)

	rnd := rand.New(rand.NewSource(0))
	rnd.Read(payload)

	return payload
}

func testMessageIndexer() func() uint32 {
	var index uint32
	return func() uint32 {
		index++
		return index
	}
}

func TestSplitPayload(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))

	for _, size := range []int{1, 2, 7, 100, 4096} {
		for _, chunkSize := range []int{1, 3, 64, 1000, 5000} {
			t.Run(fmt.Sprintf("%d-%d", size, chunkSize), func(t *testing.T) {
				payload := testGetRandomData(size)
				chunks := SplitPayload(payload, chunkSize)

				for _, chunk := range chunks {
					if len(chunk) > chunkSize {
						t.Fatalf("chunk of %d bytes exceeds %d", len(chunk), chunkSize)
					}
				}

				group := NewSplitGroup(1, uint32(len(chunks)), msgs.Reliable)
				var (
					result   []byte
					complete bool
					err      error
				)
				for _, i := range rnd.Perm(len(chunks)) {
					part := &msgs.EncapsulatedMessage{
						Reliability: msgs.Reliable,
						Split:       true,
						SplitCount:  uint32(len(chunks)),
						SplitId:     1,
						SplitIndex:  uint32(i),
						Payload:     chunks[i],
					}
					if complete {
						t.Fatal("group completed before all parts were added")
					}
					if result, complete, err = group.Update(part); err != nil {
						t.Fatal(err)
					}
				}

				if !complete {
					t.Fatal("group has not completed")
				} else if !bytes.Equal(result, payload) {
					t.Fatal("reassembled payload differs")
				}
			})
		}
	}
}

func TestSplitLargeMessage(t *testing.T) {
	const (
		mtu  = 1024
		size = 500000
	)

	payload := testGetRandomData(size)
	em := msgs.EncapsulatedMessage{
		Reliability:  msgs.ReliableOrdered,
		OrderIndex:   5,
		OrderChannel: 3,
		Payload:      payload,
	}

	if !NeedsSplit(&em, mtu) {
		t.Fatal("message does not need to be split")
	}

	parts, err := Split(em, mtu, 42, testMessageIndexer())
	if err != nil {
		t.Fatal(err)
	}

	chunkSize := SplitSize(msgs.ReliableOrdered, mtu)
	if expected := (size + chunkSize - 1) / chunkSize; len(parts) != expected {
		t.Fatalf("split into %d parts, expected %d", len(parts), expected)
	} else if count := SplitCount(msgs.ReliableOrdered, mtu, size); count != len(parts) {
		t.Fatalf("SplitCount is %d, got %d parts", count, len(parts))
	}

	seenIndices := make(map[uint32]struct{})
	for _, part := range parts {
		if len(part.Payload) > chunkSize {
			t.Fatalf("part has %d bytes, more than %d", len(part.Payload), chunkSize)
		} else if msgs.CustomFrameHeaderSize+part.Size() > mtu {
			t.Fatalf("part of %d bytes does not fit the MTU", part.Size())
		} else if part.OrderIndex != 5 || part.OrderChannel != 3 || part.SplitId != 42 {
			t.Fatalf("part has unexpected fields: %v", part)
		} else if _, seen := seenIndices[part.MessageIndex]; seen {
			t.Fatalf("message index %d was used twice", part.MessageIndex)
		}
		seenIndices[part.MessageIndex] = struct{}{}
	}

	queue := NewSplitQueue(4, uint32(len(parts)))
	for i := len(parts) - 1; i >= 0; i-- {
		msg, _, err := queue.Handle(parts[i])
		if err != nil {
			t.Fatal(err)
		}

		if i > 0 && msg != nil {
			t.Fatalf("reassembly completed early at part %d", i)
		} else if i == 0 {
			if msg == nil {
				t.Fatal("reassembly did not complete")
			} else if !bytes.Equal(msg.Payload, payload) {
				t.Fatal("reassembled payload differs")
			} else if msg.Split || msg.OrderIndex != 5 || msg.OrderChannel != 3 {
				t.Fatalf("reassembled message has unexpected fields: %v", msg)
			}
		}
	}

	if queue.Len() != 0 {
		t.Fatalf("queue still tracks %d groups", queue.Len())
	}
}

func TestSplitUnreliableKeepsMessageIndex(t *testing.T) {
	em := msgs.EncapsulatedMessage{Reliability: msgs.UnreliableSequenced, OrderIndex: 9, Payload: testGetRandomData(3000)}

	parts, err := Split(em, 576, 1, func() uint32 {
		t.Fatal("unreliable parts must not allocate message indices")
		return 0
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, part := range parts {
		if part.SplitIndex != uint32(i) || part.SplitCount != uint32(len(parts)) || part.OrderIndex != 9 {
			t.Fatalf("part %d has unexpected fields: %v", i, part)
		}
	}
}

func TestSplitTooSmallMtu(t *testing.T) {
	em := msgs.EncapsulatedMessage{Reliability: msgs.Reliable, Payload: []byte{1, 2, 3}}
	if _, err := Split(em, 20, 1, testMessageIndexer()); err == nil {
		t.Fatal("splitting for a tiny MTU did not error")
	}
}

func TestSplitGroupErrors(t *testing.T) {
	group := NewSplitGroup(7, 2, msgs.Reliable)
	part := &msgs.EncapsulatedMessage{
		Reliability: msgs.Reliable,
		Split:       true,
		SplitCount:  2,
		SplitId:     7,
		SplitIndex:  0,
		Payload:     []byte{0x01},
	}

	if _, complete, err := group.Update(part); err != nil || complete {
		t.Fatalf("first part: complete=%t, err=%v", complete, err)
	}

	if _, _, err := group.Update(part); !errors.Is(err, ErrDuplicateSplit) {
		t.Fatalf("expected ErrDuplicateSplit, got %v", err)
	}

	mismatches := []msgs.EncapsulatedMessage{*part, *part, *part, *part}
	mismatches[0].SplitId = 8
	mismatches[1].SplitCount = 3
	mismatches[2].Reliability = msgs.Unreliable
	mismatches[3].SplitIndex = 2

	for _, mismatch := range mismatches {
		mismatch := mismatch
		if _, _, err := group.Update(&mismatch); !errors.Is(err, ErrSplitMismatch) {
			t.Fatalf("expected ErrSplitMismatch for %v, got %v", mismatch, err)
		}
	}
}

func TestSplitQueueCapacity(t *testing.T) {
	newPart := func(id uint16, rel msgs.Reliability) *msgs.EncapsulatedMessage {
		return &msgs.EncapsulatedMessage{
			Reliability: rel,
			Split:       true,
			SplitCount:  2,
			SplitId:     id,
			Payload:     []byte{0x00},
		}
	}

	queue := NewSplitQueue(2, 128)

	if _, _, err := queue.Handle(newPart(1, msgs.Unreliable)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := queue.Handle(newPart(2, msgs.Reliable)); err != nil {
		t.Fatal(err)
	}

	// The unreliable group must be evicted for the third one.
	if _, evicted, err := queue.Handle(newPart(3, msgs.Reliable)); err != nil {
		t.Fatal(err)
	} else if evicted != 1 {
		t.Fatalf("evicted %d groups instead of one", evicted)
	}

	// Only reliable groups are left.
	if _, _, err := queue.Handle(newPart(4, msgs.Unreliable)); !errors.Is(err, ErrSplitQueueOverflow) {
		t.Fatalf("expected ErrSplitQueueOverflow, got %v", err)
	}

	tooLarge := newPart(5, msgs.Reliable)
	tooLarge.SplitCount = 129
	if _, _, err := queue.Handle(tooLarge); !errors.Is(err, ErrSplitCountExceeded) {
		t.Fatalf("expected ErrSplitCountExceeded, got %v", err)
	}

	queue.Clear()
	if queue.Len() != 0 {
		t.Fatalf("cleared queue has %d groups", queue.Len())
	}
}
