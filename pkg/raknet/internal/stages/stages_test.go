// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stages

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

const (
	testClientGuid int64 = 23
	testServerGuid int64 = 42
)

var (
	testClientAddr = &net.UDPAddr{IP: net.IPv4(192, 168, 0, 23), Port: 40000}
	testServerAddr = &net.UDPAddr{IP: net.IPv4(192, 168, 0, 42), Port: 19132}
)

// testResponder imitates a server's offline message handling.
type testResponder struct {
	mtu int

	// replyOneMtu and replyTwoMtu override the replied MTUs, if not zero.
	replyOneMtu int
	replyTwoMtu int
	// replyTwoGuid overrides the server guid of the second reply, if not zero.
	replyTwoGuid int64

	// errorPacket is sent as a reply to every request, if not nil.
	errorPacket msgs.Message

	// silent responders never reply.
	silent bool
}

func (tr testResponder) run(requests <-chan msgs.Message, replies chan<- msgs.Message, done <-chan struct{}) {
	for {
		var msg msgs.Message
		select {
		case <-done:
			return
		case msg = <-requests:
		}

		if tr.silent {
			continue
		}

		if tr.errorPacket != nil {
			select {
			case <-done:
				return
			case replies <- tr.errorPacket:
			}
			continue
		}

		var reply msgs.Message
		switch req := msg.(type) {
		case *msgs.OpenConnectionRequestOne:
			if int(req.Mtu) > tr.mtu {
				continue
			}

			mtu := tr.mtu
			if tr.replyOneMtu != 0 {
				mtu = tr.replyOneMtu
			}
			reply = &msgs.OpenConnectionReplyOne{ServerGuid: testServerGuid, Mtu: uint16(mtu)}

		case *msgs.OpenConnectionRequestTwo:
			mtu, guid := int(req.Mtu), testServerGuid
			if tr.replyTwoMtu != 0 {
				mtu = tr.replyTwoMtu
			}
			if tr.replyTwoGuid != 0 {
				guid = tr.replyTwoGuid
			}
			reply = &msgs.OpenConnectionReplyTwo{ServerGuid: guid, ClientAddress: testClientAddr, Mtu: uint16(mtu)}
		}

		select {
		case <-done:
			return
		case replies <- reply:
		}
	}
}

func testConfiguration(mtuSizes ...int) Configuration {
	return Configuration{
		ClientGuid:    testClientGuid,
		ServerAddress: testServerAddr,
		MtuSizes:      mtuSizes,
		MaximumMtu:    1492,
		RetriesPerMtu: 2,
		Retries:       2,
		RetryDelay:    10 * time.Millisecond,
	}
}

func runHandshake(t *testing.T, conf Configuration, tr testResponder) (State, error) {
	requests := make(chan msgs.Message, 8)
	replies := make(chan msgs.Message, 8)
	done := make(chan struct{})
	defer close(done)

	go tr.run(requests, replies, done)

	sh := NewStageHandler(DefaultStages(), replies, requests, conf)
	defer sh.Close()

	select {
	case err := <-sh.Error():
		return sh.Result(), err
	case <-time.After(5 * time.Second):
		t.Fatal("handshake timed out")
		return State{}, nil
	}
}

func TestHandshakeMtu(t *testing.T) {
	tests := []struct {
		name      string
		mtuSizes  []int
		serverMtu int
		mtu       int
	}{
		{"equal", []int{1492}, 1492, 1492},
		{"smaller server", []int{1492, 1200, 576, 400}, 548, 548},
		{"larger server", []int{576}, 1492, 1492},
		{"capped sizes", []int{2000, 1200}, 1492, 1492},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			state, err := runHandshake(t, testConfiguration(test.mtuSizes...), testResponder{mtu: test.serverMtu})
			if err != nil {
				t.Fatal(err)
			}

			if state.Mtu != test.mtu {
				t.Fatalf("negotiated MTU %d, expected %d", state.Mtu, test.mtu)
			}
			if state.ServerGuid != testServerGuid {
				t.Fatalf("server guid %d", state.ServerGuid)
			}
			if state.ClientAddress.String() != testClientAddr.String() {
				t.Fatalf("client address %v", state.ClientAddress)
			}
			if state.Phase != Assembled {
				t.Fatalf("handshake is %v", state.Phase)
			}
		})
	}
}

func TestHandshakeErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder testResponder
		code      ErrorCode
		cause     error
	}{
		{"offline", testResponder{silent: true}, Offline, ErrServerOffline},
		{"too small mtu", testResponder{mtu: 1492}, Offline, ErrServerOffline},
		{"invalid mtu", testResponder{mtu: 1492, replyOneMtu: 300}, InvalidReply, ErrInvalidMtu},
		{"invalid second mtu", testResponder{mtu: 1492, replyTwoMtu: 300}, InvalidReply, ErrInvalidMtu},
		{"guid mismatch", testResponder{mtu: 1492, replyTwoGuid: 1}, InvalidReply, ErrGuidMismatch},
		{"already connected", testResponder{
			errorPacket: msgs.NewSignalMessage(msgs.ALREADY_CONNECTED)}, AlreadyConnected, ErrAlreadyConnected},
		{"no free connections", testResponder{
			errorPacket: msgs.NewSignalMessage(msgs.NO_FREE_INCOMING_CONNECTIONS)}, NoFreeConnections, ErrNoFreeConnections},
		{"banned", testResponder{
			errorPacket: &msgs.ConnectionBanned{ServerGuid: testServerGuid}}, Banned, ErrConnectionBanned},
		{"incompatible", testResponder{
			errorPacket: &msgs.IncompatibleProtocolVersion{ProtocolVersion: 10, ServerGuid: testServerGuid}},
			IncompatibleProtocol, ErrIncompatibleProtocol},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := testConfiguration(1492, 1200, 576)
			if test.name == "too small mtu" {
				conf.MtuSizes = []int{300, 200}
			}

			_, err := runHandshake(t, conf, test.responder)

			var hsErr *HandshakeError
			if !errors.As(err, &hsErr) {
				t.Fatalf("expected a HandshakeError, got %v", err)
			}
			if hsErr.Code != test.code {
				t.Fatalf("expected code %v, got %v", test.code, hsErr.Code)
			}
			if !errors.Is(err, test.cause) {
				t.Fatalf("expected cause %v, got %v", test.cause, err)
			}
		})
	}
}

func TestHandshakeHigherReplyMtu(t *testing.T) {
	state, err := runHandshake(t, testConfiguration(1200), testResponder{mtu: 1200, replyTwoMtu: 1400})
	if err != nil {
		t.Fatal(err)
	}
	if state.Mtu != 1200 {
		t.Fatalf("expected the agreed MTU 1200, got %d", state.Mtu)
	}
}

func TestHandshakeLowerReplyMtu(t *testing.T) {
	state, err := runHandshake(t, testConfiguration(1200), testResponder{mtu: 1200, replyTwoMtu: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if state.Mtu != 1000 {
		t.Fatalf("expected the lowered MTU 1000, got %d", state.Mtu)
	}
}

func TestHandshakeClose(t *testing.T) {
	requests := make(chan msgs.Message, 8)
	replies := make(chan msgs.Message)

	conf := testConfiguration(1492)
	conf.RetryDelay = time.Minute

	sh := NewStageHandler(DefaultStages(), replies, requests, conf)

	<-requests
	_ = sh.Close()

	select {
	case err := <-sh.Error():
		if err != StageClose {
			t.Fatalf("expected StageClose, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("closed handshake did not finish")
	}
}

func TestHandshakeIgnoresUnexpected(t *testing.T) {
	requests := make(chan msgs.Message, 8)
	replies := make(chan msgs.Message, 8)

	conf := testConfiguration(1492)
	conf.RetryDelay = time.Minute

	sh := NewStageHandler(DefaultStages(), replies, requests, conf)
	defer sh.Close()

	<-requests
	replies <- &msgs.OpenConnectionReplyTwo{ServerGuid: testServerGuid, ClientAddress: testClientAddr, Mtu: 1492}
	replies <- &msgs.OpenConnectionReplyOne{ServerGuid: testServerGuid, Mtu: 1492}

	if _, ok := (<-requests).(*msgs.OpenConnectionRequestTwo); !ok {
		t.Fatal("expected the second request after the first reply")
	}
	replies <- &msgs.OpenConnectionReplyTwo{ServerGuid: testServerGuid, ClientAddress: testClientAddr, Mtu: 1492}

	select {
	case err := <-sh.Error():
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handshake timed out")
	}
}
