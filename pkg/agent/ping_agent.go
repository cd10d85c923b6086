// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// PingAgent is a simple ApplicationAgent to "pong" / acknowledge incoming payloads.
type PingAgent struct {
	endpoint Endpoint
	receiver chan Message
	sender   chan Message
}

// NewPing creates a new PingAgent ApplicationAgent, answering peers matched by the endpoint.
func NewPing(endpoint Endpoint) *PingAgent {
	p := &PingAgent{
		endpoint: endpoint,
		receiver: make(chan Message),
		sender:   make(chan Message),
	}

	go p.handler()

	return p
}

func (p *PingAgent) log() *log.Entry {
	return log.WithField("PingAgent", p.endpoint)
}

func (p *PingAgent) handler() {
	defer close(p.sender)

	for m := range p.receiver {
		switch m := m.(type) {
		case PayloadMessage:
			p.pong(m)

		case PeerMessage:
			p.log().WithField("message", m).Debug("Ignoring peer change")

		case ShutdownMessage:
			return

		default:
			p.log().WithField("message", m).Info("Received unsupported Message")
		}
	}
}

// pong answers a payload with the same reliability and channel, keeping its leading message id.
func (p *PingAgent) pong(m PayloadMessage) {
	id := raknet.UserMessageId
	if len(m.Payload) > 0 {
		id = m.Payload[0]
	}

	reply := PayloadMessage{
		Peer:        m.Peer,
		Reliability: m.Reliability,
		Channel:     m.Channel,
		Payload:     append([]byte{id}, "pong"...),
	}

	p.log().WithField("message", reply).Info("Sending pong")
	p.sender <- reply
}

func (p *PingAgent) Endpoints() []Endpoint {
	return []Endpoint{p.endpoint}
}

func (p *PingAgent) MessageReceiver() chan Message {
	return p.receiver
}

func (p *PingAgent) MessageSender() chan Message {
	return p.sender
}
