// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"errors"
	"strings"
)

// Reliability describes the delivery guarantees of an encapsulated message. It is encoded in the upper three bits of
// an EncapsulatedMessage's flags.
type Reliability uint8

const (
	// Unreliable messages might be lost, duplicated or reordered.
	Unreliable Reliability = 0

	// UnreliableSequenced messages might be lost, but older ones are dropped in favor of newer ones.
	UnreliableSequenced Reliability = 1

	// Reliable messages are retransmitted until acknowledged and delivered at most once.
	Reliable Reliability = 2

	// ReliableOrdered messages are reliable and delivered in send order on their channel.
	ReliableOrdered Reliability = 3

	// ReliableSequenced messages are reliable, but older ones are dropped in favor of newer ones.
	ReliableSequenced Reliability = 4

	// UnreliableWithAckReceipt messages are unreliable, but their sender is notified about acknowledgement or loss.
	UnreliableWithAckReceipt Reliability = 5

	// ReliableWithAckReceipt messages are reliable and their sender is notified about the acknowledgement.
	ReliableWithAckReceipt Reliability = 6

	// ReliableOrderedWithAckReceipt messages are reliable, ordered and their sender is notified about the
	// acknowledgement.
	ReliableOrderedWithAckReceipt Reliability = 7
)

// ErrInvalidReliability is returned for an unknown reliability id.
var ErrInvalidReliability = errors.New("invalid reliability")

func (rel Reliability) String() string {
	switch rel {
	case Unreliable:
		return "UNRELIABLE"
	case UnreliableSequenced:
		return "UNRELIABLE_SEQUENCED"
	case Reliable:
		return "RELIABLE"
	case ReliableOrdered:
		return "RELIABLE_ORDERED"
	case ReliableSequenced:
		return "RELIABLE_SEQUENCED"
	case UnreliableWithAckReceipt:
		return "UNRELIABLE_WITH_ACK_RECEIPT"
	case ReliableWithAckReceipt:
		return "RELIABLE_WITH_ACK_RECEIPT"
	case ReliableOrderedWithAckReceipt:
		return "RELIABLE_ORDERED_WITH_ACK_RECEIPT"
	default:
		return "INVALID"
	}
}

// IsValid checks if this Reliability represents a valid value.
func (rel Reliability) IsValid() bool {
	return rel.String() != "INVALID"
}

// IsReliable checks if messages are retransmitted and deduplicated.
func (rel Reliability) IsReliable() bool {
	switch rel {
	case Reliable, ReliableOrdered, ReliableSequenced, ReliableWithAckReceipt, ReliableOrderedWithAckReceipt:
		return true
	default:
		return false
	}
}

// IsOrdered checks if messages are delivered in order on their channel.
func (rel Reliability) IsOrdered() bool {
	return rel == ReliableOrdered || rel == ReliableOrderedWithAckReceipt
}

// IsSequenced checks if stale messages are dropped on their channel.
func (rel Reliability) IsSequenced() bool {
	return rel == UnreliableSequenced || rel == ReliableSequenced
}

// RequiresAck checks if the sender wants to be notified about acknowledgements.
func (rel Reliability) RequiresAck() bool {
	switch rel {
	case UnreliableWithAckReceipt, ReliableWithAckReceipt, ReliableOrderedWithAckReceipt:
		return true
	default:
		return false
	}
}

// ParseReliability from its textual representation as returned by String, ignoring the case.
func ParseReliability(name string) (Reliability, error) {
	for rel := Unreliable; rel <= ReliableOrderedWithAckReceipt; rel++ {
		if rel.String() == strings.ToUpper(name) {
			return rel, nil
		}
	}
	return 0, ErrInvalidReliability
}
