// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MuxAgent mimics an ApplicationAgent to be used as a multiplexer for different ApplicationAgents.
//
// Inbound Messages are routed to each child whose Endpoints match the Message's Recipients. Furthermore, the MuxAgent
// keeps track of the currently connected RakNet peers, as announced by PeerMessages.
type MuxAgent struct {
	sync.Mutex

	receiver chan Message
	sender   chan Message

	children []ApplicationAgent
	peers    map[Endpoint]struct{}
}

// NewMuxAgent creates a new MuxAgent used to multiplex different ApplicationAgents.
func NewMuxAgent() (mux *MuxAgent) {
	mux = &MuxAgent{
		receiver: make(chan Message),
		sender:   make(chan Message),
		peers:    make(map[Endpoint]struct{}),
	}

	go mux.handle()

	return
}

func (mux *MuxAgent) handle() {
	defer close(mux.sender)

	for msg := range mux.receiver {
		mux.Lock()
		if pm, ok := msg.(PeerMessage); ok {
			if pm.Connected {
				mux.peers[pm.Peer] = struct{}{}
			} else {
				delete(mux.peers, pm.Peer)
			}
		}

		delivered := 0
		for _, child := range mux.route(msg) {
			child.MessageReceiver() <- msg
			delivered++
		}
		mux.Unlock()

		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			return
		} else if delivered == 0 {
			log.WithField("message", msg).Debug("MuxAgent has no agent for a message")
		}
	}
}

// route returns all children addressed by a Message. The lock must be held.
func (mux *MuxAgent) route(msg Message) (children []ApplicationAgent) {
	rec := msg.Recipients()
	for _, child := range mux.children {
		if rec == nil || AppAgentContainsEndpoint(child, rec) {
			children = append(children, child)
		}
	}
	return
}

// Register a new ApplicationAgent for this multiplexer.
// If this ApplicationAgent closes its channel or broadcasts a ShutdownMessage, it will be unregistered.
func (mux *MuxAgent) Register(agent ApplicationAgent) {
	mux.Lock()
	defer mux.Unlock()

	mux.children = append(mux.children, agent)
	go mux.handleChild(agent)
}

func (mux *MuxAgent) handleChild(agent ApplicationAgent) {
	for msg := range agent.MessageSender() {
		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			break
		} else if pm, ok := msg.(PayloadMessage); ok && pm.Peer == AnyPeer {
			log.WithField("message", pm).Warn("MuxAgent drops a payload addressed to any peer")
			continue
		}

		mux.sender <- msg
	}

	mux.unregister(agent)
}

// unregister a previously registered ApplicationAgent.
// This will also automatically shutdown this ApplicationAgent.
func (mux *MuxAgent) unregister(agent ApplicationAgent) {
	mux.Lock()
	defer mux.Unlock()

	for i, child := range mux.children {
		if child == agent {
			close(agent.MessageReceiver())
			mux.children = append(mux.children[:i], mux.children[i+1:]...)
			break
		}
	}
}

// withPeers executes f while no Message is being routed, passing the sorted connected peers.
func (mux *MuxAgent) withPeers(f func(peers []Endpoint) error) error {
	mux.Lock()
	defer mux.Unlock()

	return f(mux.sortedPeers())
}

func (mux *MuxAgent) sortedPeers() (peers []Endpoint) {
	for peer := range mux.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return
}

// Peers which are currently connected, as announced by PeerMessages.
func (mux *MuxAgent) Peers() []Endpoint {
	mux.Lock()
	defer mux.Unlock()

	return mux.sortedPeers()
}

// Endpoints of all registered children.
func (mux *MuxAgent) Endpoints() (endpoints []Endpoint) {
	mux.Lock()
	defer mux.Unlock()

	for _, child := range mux.children {
		endpoints = append(endpoints, child.Endpoints()...)
	}
	return
}

func (mux *MuxAgent) MessageReceiver() chan Message {
	return mux.receiver
}

func (mux *MuxAgent) MessageSender() chan Message {
	return mux.sender
}
