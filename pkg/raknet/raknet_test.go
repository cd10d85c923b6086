// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func testListener(t *testing.T, modify func(conf *ListenerConfig)) *Listener {
	conf := DefaultListenerConfig("127.0.0.1:0")
	conf.Socket = SocketConfig{}
	if modify != nil {
		modify(&conf)
	}

	l, err := NewListener(conf)
	if err != nil {
		t.Fatalf("Creating listener failed: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Starting listener failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testClient(t *testing.T) *Client {
	conf := DefaultClientConfig()
	conf.Address = "127.0.0.1:0"
	conf.Socket = SocketConfig{}
	conf.RetriesPerMtu = 2
	conf.Retries = 2
	conf.RetryDelay = 100 * time.Millisecond

	c, err := NewClient(conf)
	if err != nil {
		t.Fatalf("Creating client failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func connect(t *testing.T, c *Client, l *Listener) (*Peer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	return c.Connect(ctx, l.Addr().String())
}

// awaitEvent returns the first Event of the requested type, skipping all others.
func awaitEvent(t *testing.T, status <-chan Event, eventType EventType) Event {
	timeout := time.After(testTimeout)
	for {
		select {
		case e, ok := <-status:
			if !ok {
				t.Fatalf("Status channel closed while waiting for %v", eventType)
			}
			if e.Type == eventType {
				return e
			}

		case <-timeout:
			t.Fatalf("Timeout while waiting for %v", eventType)
		}
	}
}

func userPayload(size int) []byte {
	payload := make([]byte, size)
	rand.Read(payload)
	payload[0] = UserMessageId
	return payload
}

func TestListenerClientExchange(t *testing.T) {
	l := testListener(t, nil)
	c := testClient(t)

	serverPeer, err := connect(t, c, l)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if serverPeer.Guid() != l.Guid() {
		t.Fatalf("Server guid %d differs from %d", serverPeer.Guid(), l.Guid())
	}
	if serverPeer.Mtu() != DefaultMtuSizes[0] {
		t.Fatalf("Negotiated MTU is %d instead of %d", serverPeer.Mtu(), DefaultMtuSizes[0])
	}

	clientPeer := awaitEvent(t, l.Status(), PeerConnected).Peer
	if clientPeer.Guid() != c.Guid() {
		t.Fatalf("Client guid %d differs from %d", clientPeer.Guid(), c.Guid())
	}

	tests := []struct {
		name        string
		reliability Reliability
		channel     uint8
		size        int
	}{
		{"small reliable ordered", ReliableOrdered, 0, 64},
		{"reliable on another channel", ReliableOrdered, 7, 16},
		{"split reliable ordered", ReliableOrdered, 1, 50000},
		{"reliable", Reliable, 0, 1000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			payload := userPayload(test.size)

			if err := serverPeer.Send(test.reliability, test.channel, payload); err != nil {
				t.Fatalf("Client sending failed: %v", err)
			}
			e := awaitEvent(t, l.Status(), ReceivedMessage)
			if msg := e.Message.(ReceivedPayload); !bytes.Equal(msg.Payload, payload) {
				t.Fatalf("Listener received other payload of %d bytes", len(msg.Payload))
			} else if test.reliability.IsOrdered() && msg.Channel != test.channel {
				t.Fatalf("Listener received on channel %d instead of %d", msg.Channel, test.channel)
			}

			if err := clientPeer.Send(test.reliability, test.channel, payload); err != nil {
				t.Fatalf("Listener sending failed: %v", err)
			}
			e = awaitEvent(t, c.Status(), ReceivedMessage)
			if msg := e.Message.(ReceivedPayload); !bytes.Equal(msg.Payload, payload) {
				t.Fatalf("Client received other payload of %d bytes", len(msg.Payload))
			}
		})
	}

	receiptPayload := userPayload(128)
	if err := serverPeer.Send(ReliableOrderedWithAckReceipt, 3, receiptPayload); err != nil {
		t.Fatalf("Client sending failed: %v", err)
	}
	receipt := awaitEvent(t, c.Status(), MessageAcknowledged).Message.(Receipt)
	if receipt.Reliability != ReliableOrderedWithAckReceipt || receipt.Channel != 3 {
		t.Fatalf("Unexpected receipt %v", receipt)
	} else if !bytes.Equal(receipt.Payload, receiptPayload) {
		t.Fatalf("Receipt's payload differs")
	}

	serverPeer.Disconnect()

	e := awaitEvent(t, l.Status(), PeerDisconnected)
	if e.Peer != clientPeer {
		t.Fatalf("Disconnected peer %v is not %v", e.Peer, clientPeer)
	} else if reason, _ := e.Message.(error); !errors.Is(reason, ErrDisconnectNotified) {
		t.Fatalf("Disconnect reason is %v", e.Message)
	}

	if peers := l.Peers(); len(peers) != 0 {
		t.Fatalf("Listener still knows %d peers", len(peers))
	}
	if err := serverPeer.Send(ReliableOrdered, 0, userPayload(8)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Sending on a disconnected peer returned %v", err)
	}
}

func TestListenerRefusal(t *testing.T) {
	tests := []struct {
		name   string
		modify func(conf *ListenerConfig)
		err    error
		code   ErrorCode
	}{
		{"no free connections", func(conf *ListenerConfig) { conf.MaxConnections = 0 }, ErrNoFreeConnections, NoFreeConnections},
		{"banned", func(conf *ListenerConfig) { conf.Banned = []string{"127.0.0.1"} }, ErrConnectionBanned, Banned},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l := testListener(t, test.modify)
			c := testClient(t)

			_, err := connect(t, c, l)
			if !errors.Is(err, test.err) {
				t.Fatalf("Connect returned %v instead of %v", err, test.err)
			}

			var handshakeErr *HandshakeError
			if !errors.As(err, &handshakeErr) || handshakeErr.Code != test.code {
				t.Fatalf("Connect returned %v instead of code %v", err, test.code)
			}
		})
	}
}

func TestListenerSmallerMtu(t *testing.T) {
	l := testListener(t, func(conf *ListenerConfig) { conf.Mtu = 1000 })
	c := testClient(t)

	serverPeer, err := connect(t, c, l)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The first MTU size within the listener's limit.
	if serverPeer.Mtu() != 576 {
		t.Fatalf("Negotiated MTU is %d instead of 576", serverPeer.Mtu())
	}

	clientPeer := awaitEvent(t, l.Status(), PeerConnected).Peer
	if clientPeer.Mtu() != serverPeer.Mtu() {
		t.Fatalf("MTUs differ: %d and %d", clientPeer.Mtu(), serverPeer.Mtu())
	}
}

func TestClientOffline(t *testing.T) {
	// Bind and release an address, leaving nobody listening on it.
	l := testListener(t, nil)
	address := l.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatalf("Closing listener failed: %v", err)
	}

	conf := DefaultClientConfig()
	conf.Address = "127.0.0.1:0"
	conf.Socket = SocketConfig{}
	conf.RetriesPerMtu = 1
	conf.RetryDelay = 20 * time.Millisecond

	c, err := NewClient(conf)
	if err != nil {
		t.Fatalf("Creating client failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if _, err := c.Connect(ctx, address); !errors.Is(err, ErrServerOffline) {
		t.Fatalf("Connect returned %v instead of %v", err, ErrServerOffline)
	}

	if _, ok := <-c.Status(); ok {
		t.Fatalf("Status channel is still open after a failed connect")
	}
}

func TestClientConnectCancel(t *testing.T) {
	c := testClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 192.0.2.0/24 is reserved for documentation and never answers.
	if _, err := c.Connect(ctx, "192.0.2.1:19132"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect returned %v instead of %v", err, context.Canceled)
	}
}

func TestListenerClose(t *testing.T) {
	l := testListener(t, nil)
	c := testClient(t)

	serverPeer, err := connect(t, c, l)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	awaitEvent(t, l.Status(), PeerConnected)

	if err := l.Close(); err != nil {
		t.Fatalf("Closing listener failed: %v", err)
	}

	select {
	case <-serverPeer.Done():
		if !errors.Is(serverPeer.Err(), ErrDisconnectNotified) {
			t.Fatalf("Client terminated with %v", serverPeer.Err())
		}

	case <-time.After(testTimeout):
		t.Fatalf("Client was not disconnected")
	}
}

func TestConfigValidate(t *testing.T) {
	listenerConf := DefaultListenerConfig(":0")
	if err := listenerConf.Validate(); err != nil {
		t.Fatalf("Default listener config is invalid: %v", err)
	}

	listenerConf.Mtu = 300
	listenerConf.Banned = []string{"not an address"}
	if err := listenerConf.Validate(); err == nil {
		t.Fatalf("Invalid listener config passed")
	}

	clientConf := DefaultClientConfig()
	if err := clientConf.Validate(); err != nil {
		t.Fatalf("Default client config is invalid: %v", err)
	}

	clientConf.MtuSizes = nil
	if err := clientConf.Validate(); err == nil {
		t.Fatalf("Client config without MTU sizes passed")
	}

	if _, err := NewClient(clientConf); err == nil {
		t.Fatalf("Client was created from an invalid config")
	}
}

func TestParseReliability(t *testing.T) {
	tests := []struct {
		name  string
		rel   Reliability
		valid bool
	}{
		{"RELIABLE_ORDERED", ReliableOrdered, true},
		{"UNRELIABLE", Unreliable, true},
		{"reliable", Reliable, true},
		{"SOMETIMES", 0, false},
	}

	for _, test := range tests {
		rel, err := ParseReliability(test.name)
		if (err == nil) != test.valid {
			t.Fatalf("ParseReliability(%q) returned %v", test.name, err)
		} else if test.valid && rel != test.rel {
			t.Fatalf("ParseReliability(%q) returned %v instead of %v", test.name, rel, test.rel)
		}
	}
}
