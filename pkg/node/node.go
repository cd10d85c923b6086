// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package node connects RakNet listeners and clients to ApplicationAgents.
//
// A Node forwards received payloads and peer changes to its agents and sends the agents' payloads to the addressed
// peers. Configured peers are dialed and redialed after losing their connection.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/agent"
	"github.com/dtn7/raknet-go/pkg/raknet"
)

const (
	// DefaultRetryTime between two connection attempts to a configured peer.
	DefaultRetryTime = 10 * time.Second

	eventBuffer    = 256
	responseBuffer = 16
)

// Node supervises the RakNet listeners and clients and bridges them to the ApplicationAgents.
type Node struct {
	retryTime time.Duration
	clock     clockwork.Clock

	agents *agent.MuxAgent

	// peers maps each connected peer's agent.Endpoint to its *raknet.Peer.
	peers sync.Map

	listeners      []*raknet.Listener
	clients        map[*raknet.Client]struct{}
	componentMutex sync.Mutex

	events    chan raknet.Event
	responses chan agent.Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopFlag  bool
	closeOnce sync.Once
}

// NewNode without any listeners, peers or agents.
func NewNode() *Node {
	return NewNodeWithClock(clockwork.NewRealClock(), DefaultRetryTime)
}

// NewNodeWithClock uses a specific clock and retry time for redialing peers.
func NewNodeWithClock(clock clockwork.Clock, retryTime time.Duration) *Node {
	n := &Node{
		retryTime: retryTime,
		clock:     clock,
		agents:    agent.NewMuxAgent(),
		clients:   make(map[*raknet.Client]struct{}),
		events:    make(chan raknet.Event, eventBuffer),
		responses: make(chan agent.Message, responseBuffer),
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	n.wg.Add(2)
	go n.handleInbound()
	go n.handleOutbound()

	return n
}

// RegisterAgent to receive Messages for its Endpoints.
func (n *Node) RegisterAgent(app agent.ApplicationAgent) {
	n.agents.Register(app)
}

// AddListener starts a Listener whose peers are passed to the agents.
func (n *Node) AddListener(conf raknet.ListenerConfig) (*raknet.Listener, error) {
	n.componentMutex.Lock()
	defer n.componentMutex.Unlock()

	if n.stopFlag {
		return nil, fmt.Errorf("node was closed")
	}

	l, err := raknet.NewListener(conf)
	if err != nil {
		return nil, err
	}
	if err := l.Start(); err != nil {
		return nil, err
	}

	n.listeners = append(n.listeners, l)
	n.forward(l.Status())

	log.WithField("listener", l.Addr()).Info("Node added listener")
	return l, nil
}

// AddPeer dials a server and redials it whenever the connection failed or was lost, until the Node is closed.
func (n *Node) AddPeer(address string, conf raknet.ClientConfig) error {
	if err := conf.Validate(); err != nil {
		return err
	}

	n.componentMutex.Lock()
	defer n.componentMutex.Unlock()

	if n.stopFlag {
		return fmt.Errorf("node was closed")
	}

	n.wg.Add(1)
	go n.dial(address, conf)
	return nil
}

func (n *Node) dial(address string, conf raknet.ClientConfig) {
	defer n.wg.Done()

	logger := log.WithField("peer", address)

	for {
		if c, err := n.newClient(conf); err != nil {
			logger.WithError(err).Warn("Creating client errored")
		} else if p, err := c.Connect(n.ctx, address); err != nil {
			n.removeClient(c)
			logger.WithError(err).Info("Connecting to peer failed")
		} else {
			logger.Info("Connected to peer")

			select {
			case <-p.Done():
				logger.WithError(p.Err()).Info("Connection to peer was lost")
			case <-n.ctx.Done():
			}

			_ = c.Close()
			n.removeClient(c)
		}

		select {
		case <-n.ctx.Done():
			return
		case <-n.clock.After(n.retryTime):
		}
	}
}

func (n *Node) newClient(conf raknet.ClientConfig) (*raknet.Client, error) {
	n.componentMutex.Lock()
	defer n.componentMutex.Unlock()

	if n.stopFlag {
		return nil, fmt.Errorf("node was closed")
	}

	c, err := raknet.NewClient(conf)
	if err != nil {
		return nil, err
	}

	n.clients[c] = struct{}{}
	n.forward(c.Status())
	return c, nil
}

func (n *Node) removeClient(c *raknet.Client) {
	n.componentMutex.Lock()
	delete(n.clients, c)
	n.componentMutex.Unlock()
}

// forward a status channel's Events until it is closed.
func (n *Node) forward(status <-chan raknet.Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		for e := range status {
			select {
			case n.events <- e:
			case <-n.ctx.Done():
			}
		}
	}()
}

// handleInbound passes Events and syscall responses to the agents.
func (n *Node) handleInbound() {
	defer n.wg.Done()

	for {
		var msg agent.Message

		select {
		case <-n.ctx.Done():
			return

		case e := <-n.events:
			if msg = n.handleEvent(e); msg == nil {
				continue
			}

		case msg = <-n.responses:
		}

		select {
		case n.agents.MessageReceiver() <- msg:
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) handleEvent(e raknet.Event) agent.Message {
	endpoint := agent.EndpointOf(e.Peer.Address())

	switch e.Type {
	case raknet.PeerConnected:
		n.peers.Store(endpoint, e.Peer)
		return agent.PeerMessage{Peer: endpoint, Connected: true}

	case raknet.PeerDisconnected:
		if !n.peers.CompareAndDelete(endpoint, e.Peer) {
			return nil
		}
		return agent.PeerMessage{Peer: endpoint, Connected: false}

	case raknet.ReceivedMessage:
		// The reliability is not part of a delivered message; answers default to ReliableOrdered.
		rp := e.Message.(raknet.ReceivedPayload)
		return agent.PayloadMessage{
			Peer:        endpoint,
			Reliability: raknet.ReliableOrdered,
			Channel:     rp.Channel,
			Payload:     rp.Payload,
		}

	default:
		log.WithFields(log.Fields{
			"peer":    endpoint,
			"event":   e.Type,
			"message": e.Message,
		}).Debug("Node ignores event")
		return nil
	}
}

// handleOutbound sends the agents' payloads and answers their syscalls.
func (n *Node) handleOutbound() {
	defer n.wg.Done()

	for msg := range n.agents.MessageSender() {
		switch msg := msg.(type) {
		case agent.PayloadMessage:
			n.send(msg)

		case agent.SyscallRequestMessage:
			response := agent.SyscallResponseMessage{
				Request:   msg.Request,
				Response:  n.syscall(msg.Request),
				Recipient: msg.Sender,
			}

			select {
			case n.responses <- response:
			case <-n.ctx.Done():
			}

		default:
			log.WithField("message", msg).Debug("Node ignores agent message")
		}
	}
}

func (n *Node) send(msg agent.PayloadMessage) {
	logger := log.WithField("message", msg)

	v, ok := n.peers.Load(msg.Peer)
	if !ok {
		logger.Warn("Dropping payload for an unknown peer")
		return
	}

	if err := v.(*raknet.Peer).Send(msg.Reliability, msg.Channel, msg.Payload); err != nil {
		logger.WithError(err).Warn("Sending payload errored")
	} else {
		logger.Debug("Sent payload")
	}
}

// PeerInfo describes a connected peer for the "peers" syscall.
type PeerInfo struct {
	Address string        `json:"address"`
	Guid    int64         `json:"guid"`
	Mtu     int           `json:"mtu"`
	Latency time.Duration `json:"latency"`
}

// Peers currently connected.
func (n *Node) Peers() (infos []PeerInfo) {
	n.peers.Range(func(k, v any) bool {
		p := v.(*raknet.Peer)
		infos = append(infos, PeerInfo{
			Address: string(k.(agent.Endpoint)),
			Guid:    p.Guid(),
			Mtu:     p.Mtu(),
			Latency: p.Latency().Last,
		})
		return true
	})
	return
}

// syscall answers a request; "peers" returns a JSON array of PeerInfo.
func (n *Node) syscall(request string) []byte {
	switch request {
	case "peers":
		infos := n.Peers()
		if infos == nil {
			infos = []PeerInfo{}
		}

		data, err := json.Marshal(infos)
		if err != nil {
			log.WithError(err).Warn("Marshalling peers errored")
			return nil
		}
		return data

	default:
		log.WithField("syscall", request).Info("Received unknown syscall")
		return nil
	}
}

// Close all listeners, clients and agents.
func (n *Node) Close() (err error) {
	n.closeOnce.Do(func() {
		n.componentMutex.Lock()
		n.stopFlag = true
		listeners := n.listeners
		clients := make([]*raknet.Client, 0, len(n.clients))
		for c := range n.clients {
			clients = append(clients, c)
		}
		n.componentMutex.Unlock()

		n.cancel()

		for _, l := range listeners {
			if closeErr := l.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}
		for _, c := range clients {
			if closeErr := c.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}

		n.agents.MessageReceiver() <- agent.ShutdownMessage{}
		n.wg.Wait()

		log.Info("Node closed")
	})
	return
}
