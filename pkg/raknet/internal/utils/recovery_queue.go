// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package utils

import (
	"github.com/google/btree"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// recoveryEntry orders the sent frames by their sending order, independently of wrapping sequence numbers.
type recoveryEntry struct {
	stamp          uint64
	sequenceNumber uint32
}

func recoveryEntryLess(a, b recoveryEntry) bool {
	return a.stamp < b.stamp
}

type recoveryFrame struct {
	stamp    uint64
	messages []*msgs.EncapsulatedMessage
}

// RecoveryQueue holds the reliable messages of sent CustomFrames until they are acknowledged.
type RecoveryQueue struct {
	frames  map[uint32]recoveryFrame
	order   *btree.BTreeG[recoveryEntry]
	counter uint64
}

// NewRecoveryQueue creates an empty RecoveryQueue.
func NewRecoveryQueue() *RecoveryQueue {
	return &RecoveryQueue{
		frames: make(map[uint32]recoveryFrame),
		order:  btree.NewG[recoveryEntry](2, recoveryEntryLess),
	}
}

// Len returns the amount of unacknowledged frames.
func (rq *RecoveryQueue) Len() int {
	return len(rq.frames)
}

// Put the messages of a sent frame. An already present sequence number is replaced and becomes the newest entry.
func (rq *RecoveryQueue) Put(sequenceNumber uint32, messages []*msgs.EncapsulatedMessage) {
	rq.Remove(sequenceNumber)

	rq.counter++
	rq.frames[sequenceNumber] = recoveryFrame{stamp: rq.counter, messages: messages}
	rq.order.ReplaceOrInsert(recoveryEntry{stamp: rq.counter, sequenceNumber: sequenceNumber})
}

// Get the messages of a sent frame.
func (rq *RecoveryQueue) Get(sequenceNumber uint32) (messages []*msgs.EncapsulatedMessage, ok bool) {
	frame, ok := rq.frames[sequenceNumber]
	return frame.messages, ok
}

// Remove an acknowledged frame; reports if it was present.
func (rq *RecoveryQueue) Remove(sequenceNumber uint32) bool {
	frame, ok := rq.frames[sequenceNumber]
	if !ok {
		return false
	}

	delete(rq.frames, sequenceNumber)
	rq.order.Delete(recoveryEntry{stamp: frame.stamp, sequenceNumber: sequenceNumber})
	return true
}

// Rename the entry of a resent frame to its new sequence number, which becomes the newest entry.
func (rq *RecoveryQueue) Rename(oldSequenceNumber, newSequenceNumber uint32) bool {
	messages, ok := rq.Get(oldSequenceNumber)
	if !ok {
		return false
	}

	rq.Remove(oldSequenceNumber)
	rq.Put(newSequenceNumber, messages)
	return true
}

// Oldest returns the longest unacknowledged frame.
func (rq *RecoveryQueue) Oldest() (sequenceNumber uint32, messages []*msgs.EncapsulatedMessage, ok bool) {
	entry, ok := rq.order.Min()
	if !ok {
		return
	}

	return entry.sequenceNumber, rq.frames[entry.sequenceNumber].messages, true
}

// Contains checks if a sequence number is still unacknowledged.
func (rq *RecoveryQueue) Contains(sequenceNumber uint32) bool {
	_, ok := rq.frames[sequenceNumber]
	return ok
}

// Clear all entries.
func (rq *RecoveryQueue) Clear() {
	rq.frames = make(map[uint32]recoveryFrame)
	rq.order.Clear(false)
}
