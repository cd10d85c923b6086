// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// Message is a generic interface to specify an information exchange between an ApplicationAgent and some Manager.
// The following types named *Message are implementations of this interface.
type Message interface {
	// Recipients returns a list of endpoints to which this message is addressed.
	// However, if this message is not addressed to some specific endpoint, nil must be returned.
	Recipients() []Endpoint
}

// PayloadMessage indicates a transmitted RakNet message.
// If the Message is received from an ApplicationAgent, it is an incoming payload from the Peer.
// If the Message is sent from an ApplicationAgent, it is an outgoing payload to the Peer.
type PayloadMessage struct {
	Peer        Endpoint
	Reliability raknet.Reliability
	Channel     uint8
	Payload     []byte
}

// Recipients is the Peer of a PayloadMessage.
func (pm PayloadMessage) Recipients() []Endpoint {
	return []Endpoint{pm.Peer}
}

func (pm PayloadMessage) String() string {
	return fmt.Sprintf("PayloadMessage(%v, %v, channel %d, %d bytes)", pm.Peer, pm.Reliability, pm.Channel, len(pm.Payload))
}

// PeerMessage informs about a connected or disconnected Peer. It is only sent to an ApplicationAgent.
type PeerMessage struct {
	Peer      Endpoint
	Connected bool
}

// Recipients is the Peer of a PeerMessage.
func (pm PeerMessage) Recipients() []Endpoint {
	return []Endpoint{pm.Peer}
}

// SyscallRequestMessage is sent from an ApplicationAgent to request some "syscall" specific information.
type SyscallRequestMessage struct {
	Sender  Endpoint
	Request string
}

// Recipients is the Sender of a SyscallRequestMessage.
func (srm SyscallRequestMessage) Recipients() []Endpoint {
	return []Endpoint{srm.Sender}
}

// SyscallResponseMessage is the answer to a SyscallRequestMessage, sent to an ApplicationAgent.
// The Response is stored as a generic byte array. However, its content is defined for each syscall.
type SyscallResponseMessage struct {
	Request   string
	Response  []byte
	Recipient Endpoint
}

// Recipients are the sender of the SyscallRequestMessage.
func (srm SyscallResponseMessage) Recipients() []Endpoint {
	return []Endpoint{srm.Recipient}
}

// ShutdownMessage indicates the closing down of an ApplicationAgent.
// If the Message is received from an ApplicationAgent, it must close itself down.
// If the Message is sent from an ApplicationAgent, it is closing down itself.
type ShutdownMessage struct{}

// Recipients are not available for a ShutdownMessage.
func (sm ShutdownMessage) Recipients() []Endpoint {
	return nil
}
