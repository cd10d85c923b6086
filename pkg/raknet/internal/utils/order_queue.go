// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package utils

import (
	"errors"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

const (
	// orderIndexMask limits order indices to their 24 bit wire representation.
	orderIndexMask uint32 = 1<<24 - 1

	// OrderWindow is the amount of order indices, starting at the next expected one, which might be buffered.
	OrderWindow uint32 = 1 << 13
)

// ErrOrderWindowExceeded is returned for an ordered message too far ahead of the next expected one.
var ErrOrderWindowExceeded = errors.New("order index exceeds the order window")

// OrderQueue buffers the ordered messages of one channel until they can be delivered contiguously.
type OrderQueue struct {
	next    uint32
	pending map[uint32]*msgs.EncapsulatedMessage
}

// NewOrderQueue expecting the order index zero first.
func NewOrderQueue() *OrderQueue {
	return &OrderQueue{pending: make(map[uint32]*msgs.EncapsulatedMessage)}
}

// Next is the order index expected to be delivered next.
func (oq *OrderQueue) Next() uint32 {
	return oq.next
}

// Pending is the amount of buffered messages.
func (oq *OrderQueue) Pending() int {
	return len(oq.pending)
}

// Push an ordered message and return all messages which can now be delivered, in order index order.
// Messages older than the next expected one are dropped. Messages beyond the OrderWindow are rejected, since a
// reliable one was already acknowledged and cannot be dropped without being lost.
func (oq *OrderQueue) Push(em *msgs.EncapsulatedMessage) (deliverable []*msgs.EncapsulatedMessage, err error) {
	if em.OrderIndex < oq.next {
		return
	} else if em.OrderIndex-oq.next >= OrderWindow {
		err = ErrOrderWindowExceeded
		return
	}
	oq.pending[em.OrderIndex] = em

	for {
		msg, ok := oq.pending[oq.next]
		if !ok {
			return
		}

		delete(oq.pending, oq.next)
		oq.next = (oq.next + 1) & orderIndexMask
		deliverable = append(deliverable, msg)
	}
}

// Clear all buffered messages and reset the expected order index.
func (oq *OrderQueue) Clear() {
	oq.next = 0
	oq.pending = make(map[uint32]*msgs.EncapsulatedMessage)
}
