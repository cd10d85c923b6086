// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package node

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dtn7/raknet-go/pkg/agent"
	"github.com/dtn7/raknet-go/pkg/raknet"
)

const testTimeout = 5 * time.Second

// chanAgent exposes its received Messages on a buffered channel.
type chanAgent struct {
	receiver chan agent.Message
	sender   chan agent.Message
}

func newChanAgent() *chanAgent {
	return &chanAgent{
		receiver: make(chan agent.Message, 64),
		sender:   make(chan agent.Message),
	}
}

func (c *chanAgent) Endpoints() []agent.Endpoint {
	return []agent.Endpoint{agent.AnyPeer}
}

func (c *chanAgent) MessageReceiver() chan agent.Message {
	return c.receiver
}

func (c *chanAgent) MessageSender() chan agent.Message {
	return c.sender
}

// await the first Message the predicate accepts, skipping all others.
func (c *chanAgent) await(t *testing.T, accept func(agent.Message) bool) agent.Message {
	timeout := time.After(testTimeout)
	for {
		select {
		case msg := <-c.receiver:
			if accept(msg) {
				return msg
			}

		case <-timeout:
			t.Fatalf("Timeout while waiting for a message")
		}
	}
}

func (c *chanAgent) awaitPeer(t *testing.T, connected bool) agent.PeerMessage {
	return c.await(t, func(msg agent.Message) bool {
		pm, ok := msg.(agent.PeerMessage)
		return ok && pm.Connected == connected
	}).(agent.PeerMessage)
}

func testListenerConfig() raknet.ListenerConfig {
	conf := raknet.DefaultListenerConfig("127.0.0.1:0")
	conf.Socket = raknet.SocketConfig{}
	return conf
}

func testClientConfig() raknet.ClientConfig {
	conf := raknet.DefaultClientConfig()
	conf.Address = "127.0.0.1:0"
	conf.Socket = raknet.SocketConfig{}
	conf.RetriesPerMtu = 2
	conf.Retries = 2
	conf.RetryDelay = 100 * time.Millisecond
	return conf
}

func testNode(t *testing.T) *Node {
	n := NewNodeWithClock(clockwork.NewRealClock(), 100*time.Millisecond)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNodeExchange(t *testing.T) {
	server := testNode(t)
	serverAgent := newChanAgent()
	server.RegisterAgent(serverAgent)

	l, err := server.AddListener(testListenerConfig())
	if err != nil {
		t.Fatal(err)
	}
	serverEndpoint := agent.EndpointOf(l.Addr())

	client := testNode(t)
	clientAgent := newChanAgent()
	client.RegisterAgent(clientAgent)

	if err := client.AddPeer(l.Addr().String(), testClientConfig()); err != nil {
		t.Fatal(err)
	}

	if pm := clientAgent.awaitPeer(t, true); pm.Peer != serverEndpoint {
		t.Fatalf("Client connected to %v, expected %v", pm.Peer, serverEndpoint)
	}
	clientEndpoint := serverAgent.awaitPeer(t, true).Peer

	payload := []byte{raknet.UserMessageId, 0x23, 0x42}
	clientAgent.sender <- agent.PayloadMessage{
		Peer:        serverEndpoint,
		Reliability: raknet.ReliableOrdered,
		Channel:     2,
		Payload:     payload,
	}

	msg := serverAgent.await(t, func(msg agent.Message) bool {
		_, ok := msg.(agent.PayloadMessage)
		return ok
	}).(agent.PayloadMessage)
	if msg.Peer != clientEndpoint || msg.Channel != 2 || !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("Received unexpected payload %v", msg)
	}

	serverAgent.sender <- agent.SyscallRequestMessage{Sender: agent.AnyPeer, Request: "peers"}
	response := serverAgent.await(t, func(msg agent.Message) bool {
		_, ok := msg.(agent.SyscallResponseMessage)
		return ok
	}).(agent.SyscallResponseMessage)

	var infos []PeerInfo
	if err := json.Unmarshal(response.Response, &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Address != string(clientEndpoint) || infos[0].Mtu != 1492 {
		t.Fatalf("Unexpected peers %v", infos)
	}

	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if pm := serverAgent.awaitPeer(t, false); pm.Peer != clientEndpoint {
		t.Fatalf("Disconnected peer %v, expected %v", pm.Peer, clientEndpoint)
	}
	if peers := server.Peers(); len(peers) != 0 {
		t.Fatalf("Peers %v are left", peers)
	}
}

func TestNodePing(t *testing.T) {
	server := testNode(t)
	server.RegisterAgent(agent.NewPing(agent.AnyPeer))

	l, err := server.AddListener(testListenerConfig())
	if err != nil {
		t.Fatal(err)
	}

	c, err := raknet.NewClient(testClientConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	p, err := c.Connect(ctx, l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Send(raknet.ReliableOrdered, 1, []byte{raknet.UserMessageId + 1, 0xFF}); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(testTimeout)
	for {
		select {
		case e := <-c.Status():
			if e.Type != raknet.ReceivedMessage {
				continue
			}

			rp := e.Message.(raknet.ReceivedPayload)
			expected := append([]byte{raknet.UserMessageId + 1}, "pong"...)
			if rp.Channel != 1 || !bytes.Equal(rp.Payload, expected) {
				t.Fatalf("Received unexpected pong %v", rp)
			}
			return

		case <-timeout:
			t.Fatalf("Timeout while waiting for a pong")
		}
	}
}

func TestNodeClosed(t *testing.T) {
	n := NewNode()
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := n.AddListener(testListenerConfig()); err == nil {
		t.Fatalf("Adding a listener to a closed node succeeded")
	}
	if err := n.AddPeer("127.0.0.1:19132", testClientConfig()); err == nil {
		t.Fatalf("Adding a peer to a closed node succeeded")
	}
}
