// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"net"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

const (
	testClientGuid int64 = 0x0102030405060708
	testServerGuid int64 = 0x1112131415161718
)

var (
	testClientAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	testServerAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132}
)

// testTransport records all sent datagrams.
type testTransport struct {
	mutex     sync.Mutex
	datagrams [][]byte
}

func (tt *testTransport) SendTo(b []byte, _ *net.UDPAddr) error {
	tt.mutex.Lock()
	defer tt.mutex.Unlock()

	tt.datagrams = append(tt.datagrams, append([]byte(nil), b...))
	return nil
}

func (tt *testTransport) take() (datagrams [][]byte) {
	tt.mutex.Lock()
	defer tt.mutex.Unlock()

	datagrams, tt.datagrams = tt.datagrams, nil
	return
}

type testMessage struct {
	channel uint8
	payload []byte
}

// testCallbacks records all events.
type testCallbacks struct {
	mutex sync.Mutex

	connects    int
	disconnects []error
	errors      []error
	messages    []testMessage
	acks        []msgs.EncapsulatedMessage
	ackRecords  []msgs.Record
	nacks       []msgs.EncapsulatedMessage
}

func (tc *testCallbacks) OnConnect(_ *Session) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.connects++
}

func (tc *testCallbacks) OnDisconnect(_ *Session, reason error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.disconnects = append(tc.disconnects, reason)
}

func (tc *testCallbacks) OnMessage(_ *Session, channel uint8, payload []byte) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.messages = append(tc.messages, testMessage{channel, payload})
}

func (tc *testCallbacks) OnAcknowledge(_ *Session, record msgs.Record, msg msgs.EncapsulatedMessage) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.acks = append(tc.acks, msg)
	tc.ackRecords = append(tc.ackRecords, record)
}

func (tc *testCallbacks) OnNotAcknowledge(_ *Session, _ msgs.Record, msg msgs.EncapsulatedMessage) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.nacks = append(tc.nacks, msg)
}

func (tc *testCallbacks) OnSessionError(_ *Session, err error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.errors = append(tc.errors, err)
}

func (tc *testCallbacks) payloads() (payloads []string) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	for _, msg := range tc.messages {
		payloads = append(payloads, string(msg.payload))
	}
	return
}

type testPeer struct {
	session   *Session
	transport *testTransport
	callbacks *testCallbacks
}

func testConfig() Config {
	conf := DefaultConfig()
	conf.Mtu = 1024
	conf.LatencyEnabled = false
	return conf
}

func newTestPeer(t *testing.T, role Role, addr *net.UDPAddr, guid int64, conf Config, clock clockwork.Clock) *testPeer {
	tp := &testPeer{
		transport: &testTransport{},
		callbacks: &testCallbacks{},
	}

	s, err := NewSession(Setup{
		Address:   addr,
		Guid:      guid,
		Config:    conf,
		Role:      role,
		Transport: tp.transport,
		Callbacks: tp.callbacks,
		Clock:     clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	tp.session = s

	return tp
}

// newTestServer creates a server role session of a client, i.e., the remote address and guid are the client's.
func newTestServer(t *testing.T, conf Config, clock clockwork.Clock) *testPeer {
	return newTestPeer(t, NewServerRole(), testClientAddr, testClientGuid, conf, clock)
}

// newTestPair creates a client and a server session and completes their login.
func newTestPair(t *testing.T, conf Config, clock clockwork.Clock) (client, server *testPeer) {
	client = newTestPeer(t, NewClientRole(testClientGuid), testServerAddr, testServerGuid, conf, clock)
	server = newTestServer(t, conf, clock)

	pump(t, client, server)

	if state := client.session.State(); state != Connected {
		t.Fatalf("client is %v", state)
	}
	if state := server.session.State(); state != Connected {
		t.Fatalf("server is %v", state)
	}
	return
}

// pump updates both sessions and exchanges their datagrams until no more traffic occurs.
func pump(t *testing.T, a, b *testPeer) {
	for i := 0; i < 1000; i++ {
		a.session.Update()
		b.session.Update()

		aOut, bOut := a.transport.take(), b.transport.take()
		if len(aOut) == 0 && len(bOut) == 0 {
			return
		}

		for _, datagram := range aOut {
			b.session.HandleDatagram(datagram)
		}
		for _, datagram := range bOut {
			a.session.HandleDatagram(datagram)
		}
	}
	t.Fatal("sessions did not settle")
}

// decodeDatagrams sorts sent datagrams into CUSTOM frames, ACKs and NACKs.
func decodeDatagrams(t *testing.T, datagrams [][]byte) (frames []*msgs.CustomFrame, acks, nacks []msgs.Record) {
	for _, datagram := range datagrams {
		msg, err := msgs.UnmarshalBytes(datagram)
		if err != nil {
			t.Fatal(err)
		}

		switch msg := msg.(type) {
		case *msgs.CustomFrame:
			frames = append(frames, msg)
		case *msgs.AcknowledgeMessage:
			if msg.IsAcknowledgement() {
				acks = append(acks, msg.Records...)
			} else {
				nacks = append(nacks, msg.Records...)
			}
		default:
			t.Fatalf("unexpected datagram %v", msg)
		}
	}
	return
}

func testUserMessage(rel msgs.Reliability, messageIndex, orderIndex uint32, payload string) *msgs.EncapsulatedMessage {
	return &msgs.EncapsulatedMessage{
		Reliability:  rel,
		MessageIndex: messageIndex,
		OrderIndex:   orderIndex,
		Payload:      []byte(payload),
	}
}
