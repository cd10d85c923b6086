// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
)

// Reliability of a message, i.e., if it is retransmitted, ordered, sequenced or acknowledged by a receipt.
type Reliability = msgs.Reliability

const (
	Unreliable                    = msgs.Unreliable
	UnreliableSequenced           = msgs.UnreliableSequenced
	Reliable                      = msgs.Reliable
	ReliableOrdered               = msgs.ReliableOrdered
	ReliableSequenced             = msgs.ReliableSequenced
	UnreliableWithAckReceipt      = msgs.UnreliableWithAckReceipt
	ReliableWithAckReceipt        = msgs.ReliableWithAckReceipt
	ReliableOrderedWithAckReceipt = msgs.ReliableOrderedWithAckReceipt
)

// ParseReliability from its name, e.g., "RELIABLE_ORDERED".
func ParseReliability(name string) (Reliability, error) {
	return msgs.ParseReliability(name)
}

// MaxChannels is the amount of ordering channels.
const MaxChannels = session.MaxChannels

// MinimumMtu and MaximumMtu bound every negotiated MTU.
const (
	MinimumMtu = session.MinimumMtu
	MaximumMtu = session.MaximumMtu
)

// UserMessageId is the first message id free for applications. Payloads should start with an id of at least this
// value to be distinguishable from RakNet's own messages.
const UserMessageId = msgs.USER_PACKET_ENUM

// Latency statistics of a Peer.
type Latency = session.Latency

// SessionConfig tunes the reliability layer of each connection.
type SessionConfig = session.Config

// DefaultSessionConfig returns the default SessionConfig.
func DefaultSessionConfig() SessionConfig {
	return session.DefaultConfig()
}
