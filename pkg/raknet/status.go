// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType indicates the kind of an Event.
type EventType uint

const (
	_ EventType = iota

	// PeerConnected shows a completed login. The Message is nil.
	PeerConnected

	// PeerDisconnected shows a terminated connection. The Message is the reason, a possibly nil error.
	PeerDisconnected

	// ReceivedMessage shows the reception of a message. The Message's type must be a ReceivedPayload struct.
	ReceivedMessage

	// MessageAcknowledged shows the acknowledgement of a receipt-requiring message. The Message's type must be a
	// Receipt struct.
	MessageAcknowledged

	// MessageLost shows the loss of an unreliable receipt-requiring message. The Message's type must be a Receipt
	// struct.
	MessageLost

	// PeerError shows a failure of a connection, e.g., a timeout or a protocol violation. The Message is the error.
	PeerError
)

func (et EventType) String() string {
	switch et {
	case PeerConnected:
		return "Peer Connected"
	case PeerDisconnected:
		return "Peer Disconnected"
	case ReceivedMessage:
		return "Received Message"
	case MessageAcknowledged:
		return "Message Acknowledged"
	case MessageLost:
		return "Message Lost"
	case PeerError:
		return "Peer Error"
	default:
		return "Unknown Type"
	}
}

// Event allows transmission of information via a return channel from a Listener or a Client.
type Event struct {
	Peer    *Peer
	Type    EventType
	Message interface{}
}

func (e Event) String() string {
	return fmt.Sprintf("%v-Event from %v", e.Type, e.Peer)
}

// ReceivedPayload is the Message content of a ReceivedMessage Event.
type ReceivedPayload struct {
	Channel uint8
	Payload []byte
}

// Receipt is the Message content of a MessageAcknowledged or MessageLost Event.
type Receipt struct {
	// SequenceNumber of the datagram which carried the message.
	SequenceNumber uint32

	Reliability  Reliability
	MessageIndex uint32
	Channel      uint8
	Payload      []byte
}

// eventSink delivers Events on a status channel until its context is done or it was closed.
type eventSink struct {
	ctx    context.Context
	status chan Event

	closed bool
	mutex  sync.RWMutex
}

func newEventSink(ctx context.Context, buffer int) *eventSink {
	return &eventSink{
		ctx:    ctx,
		status: make(chan Event, buffer),
	}
}

func (sink *eventSink) emit(e Event) {
	sink.mutex.RLock()
	defer sink.mutex.RUnlock()

	if sink.closed {
		log.WithField("event", e).Debug("Dropping event after shutdown")
		return
	}

	select {
	case sink.status <- e:
	case <-sink.ctx.Done():
		log.WithField("event", e).Debug("Dropping event after shutdown")
	}
}

// close the status channel. The context must be done before, otherwise this blocks on pending emits.
func (sink *eventSink) close() {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	if !sink.closed {
		sink.closed = true
		close(sink.status)
	}
}
