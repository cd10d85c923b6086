// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"reflect"
	"testing"
	"time"
)

func TestMuxAgent(t *testing.T) {
	m1 := testPayload("10.0.0.1:19132", "hello world")

	mux := NewMuxAgent()

	mock1 := newMockAgent([]Endpoint{MustParseEndpoint("10.0.0.1:19132")})
	mock2 := newMockAgent([]Endpoint{MustParseEndpoint("10.0.0.2:19132")})

	mux.Register(mock1)
	mux.Register(mock2)

	mux.MessageReceiver() <- m1
	time.Sleep(100 * time.Millisecond)

	for i, mock := range []*mockAgent{mock1, mock2} {
		if msgs := mock.inbox(); len(msgs) != 1-i {
			t.Fatalf("mock agent%d did not receive %d messages; msgs := %v", i+1, 1-i, msgs)
		} else if 1-i > 0 && !reflect.DeepEqual(msgs[0], m1) {
			t.Fatalf("message is not m1; %v %v", msgs[0], m1)
		}
	}

	mock1.MessageSender() <- ShutdownMessage{}
	time.Sleep(100 * time.Millisecond)

	select {
	case msg := <-mux.MessageSender():
		t.Fatalf("Mux forwarded shutdown message %v", msg)

	case <-time.After(100 * time.Millisecond):
		break
	}

	m2 := testPayload("10.0.0.2:19132", "hello world")
	mux.MessageReceiver() <- m1
	mux.MessageReceiver() <- m2
	time.Sleep(100 * time.Millisecond)

	if msgs := mock1.inbox(); len(msgs) != 0 {
		t.Fatalf("shutdowned mock agent1 received messages %v", msgs)
	}

	if msgs := mock2.inbox(); len(msgs) != 1 {
		t.Fatalf("mock agent2 did not receive messages; msgs := %v", msgs)
	} else if !reflect.DeepEqual(msgs[0], m2) {
		t.Fatalf("message is not m2; %v %v", msgs[0], m2)
	}

	mock2.send(m2)

	select {
	case msg := <-mux.MessageSender():
		if !reflect.DeepEqual(msg, m2) {
			t.Fatalf("Expected %v, got %v", m2, msg)
		}

	case <-time.After(250 * time.Millisecond):
		t.Fatal("Mux did not receive message")
	}

	mux.MessageReceiver() <- ShutdownMessage{}
	time.Sleep(100 * time.Millisecond)

	if msgs := mock2.inbox(); len(msgs) != 1 {
		t.Fatalf("mock agent did not receive one message; msgs := %v", msgs)
	} else if !reflect.DeepEqual(msgs[0], ShutdownMessage{}) {
		t.Fatalf("expected %v, got %v", ShutdownMessage{}, msgs[0])
	}
}

func TestMuxAgentPeers(t *testing.T) {
	mux := NewMuxAgent()
	mock := newMockAgent([]Endpoint{AnyPeer})
	mux.Register(mock)

	tests := []struct {
		msg   PeerMessage
		peers []Endpoint
	}{
		{PeerMessage{Peer: "10.0.0.2:19132", Connected: true}, []Endpoint{"10.0.0.2:19132"}},
		{PeerMessage{Peer: "10.0.0.1:19132", Connected: true}, []Endpoint{"10.0.0.1:19132", "10.0.0.2:19132"}},
		{PeerMessage{Peer: "10.0.0.2:19132", Connected: false}, []Endpoint{"10.0.0.1:19132"}},
		{PeerMessage{Peer: "10.0.0.1:19132", Connected: false}, nil},
	}

	for _, test := range tests {
		mux.MessageReceiver() <- test.msg
		time.Sleep(25 * time.Millisecond)

		if peers := mux.Peers(); !reflect.DeepEqual(peers, test.peers) {
			t.Fatalf("after %v expected peers %v, got %v", test.msg, test.peers, peers)
		}
	}

	if msgs := mock.inbox(); len(msgs) != len(tests) {
		t.Fatalf("expected %d peer messages, got %v", len(tests), msgs)
	}

	mock.send(testPayload(string(AnyPeer), "everyone"))
	mock.send(testPayload("10.0.0.1:19132", "someone"))

	select {
	case msg := <-mux.MessageSender():
		if pm := msg.(PayloadMessage); pm.Peer != "10.0.0.1:19132" {
			t.Fatalf("forwarded payload to %v", pm.Peer)
		}

	case <-time.After(250 * time.Millisecond):
		t.Fatal("Mux did not forward the addressed payload")
	}

	mux.MessageReceiver() <- ShutdownMessage{}
}
