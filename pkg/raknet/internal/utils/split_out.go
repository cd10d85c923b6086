// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package utils

import (
	"fmt"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// NeedsSplit checks if an unsplit EncapsulatedMessage would not fit into a CustomFrame of the given MTU.
func NeedsSplit(em *msgs.EncapsulatedMessage, mtu int) bool {
	return msgs.CustomFrameHeaderSize+msgs.HeaderSize(em.Reliability, false)+len(em.Payload) > mtu
}

// SplitSize is the largest payload chunk of a split part for the given Reliability and MTU.
func SplitSize(rel msgs.Reliability, mtu int) int {
	return mtu - msgs.CustomFrameHeaderSize - msgs.HeaderSize(rel, true)
}

// SplitCount is the amount of parts a payload of the given length will be split into.
func SplitCount(rel msgs.Reliability, mtu, length int) int {
	size := SplitSize(rel, mtu)
	if size <= 0 {
		return 0
	}
	return (length + size - 1) / size
}

// SplitPayload into chunks of at most size bytes. The chunks share memory with the payload.
func SplitPayload(payload []byte, size int) [][]byte {
	if size <= 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(payload)+size-1)/size)
	for len(payload) > size {
		chunks = append(chunks, payload[:size:size])
		payload = payload[size:]
	}
	return append(chunks, payload)
}

// Split an EncapsulatedMessage into parts fitting the MTU.
//
// All parts share the splitId. Reliable parts get a fresh message index from nextMessageIndex, while the order index
// and channel are copied from the original message.
func Split(em msgs.EncapsulatedMessage, mtu int, splitId uint16, nextMessageIndex func() uint32) ([]*msgs.EncapsulatedMessage, error) {
	size := SplitSize(em.Reliability, mtu)
	if size <= 0 {
		return nil, fmt.Errorf("MTU %d is too small to split a %v message", mtu, em.Reliability)
	}

	chunks := SplitPayload(em.Payload, size)
	parts := make([]*msgs.EncapsulatedMessage, len(chunks))

	for i, chunk := range chunks {
		part := &msgs.EncapsulatedMessage{
			Reliability:  em.Reliability,
			MessageIndex: em.MessageIndex,
			OrderIndex:   em.OrderIndex,
			OrderChannel: em.OrderChannel,
			Split:        true,
			SplitCount:   uint32(len(chunks)),
			SplitId:      splitId,
			SplitIndex:   uint32(i),
			Payload:      append([]byte(nil), chunk...),
		}

		if em.Reliability.IsReliable() {
			part.MessageIndex = nextMessageIndex()
		}

		parts[i] = part
	}

	return parts, nil
}
