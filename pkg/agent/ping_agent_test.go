// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"testing"
	"time"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

func TestPingAgent(t *testing.T) {
	ping := NewPing(AnyPeer)

	msgOut := testPayload("10.0.0.1:19132", "ping")
	msgOut.Reliability = raknet.Reliable
	msgOut.Channel = 5

	ping.receiver <- msgOut

	select {
	case <-time.After(500 * time.Millisecond):
		t.Fatal("PingAgent did not answer after 500ms")

	case m := <-ping.sender:
		msgIn, ok := m.(PayloadMessage)
		if !ok {
			t.Fatalf("Incoming message is not a PayloadMessage, it's a %T", m)
		}

		if msgIn.Peer != msgOut.Peer {
			t.Fatalf("Pong is addressed to %v instead of %v", msgIn.Peer, msgOut.Peer)
		} else if msgIn.Reliability != raknet.Reliable || msgIn.Channel != 5 {
			t.Fatalf("Pong uses %v on channel %d", msgIn.Reliability, msgIn.Channel)
		} else if !bytes.Equal(msgIn.Payload, []byte{raknet.UserMessageId, 'p', 'o', 'n', 'g'}) {
			t.Fatalf("Pong's payload is %x", msgIn.Payload)
		}
	}

	ping.receiver <- ShutdownMessage{}

	if _, ok := <-ping.sender; ok {
		t.Fatal("PingAgent's sender is still open after a shutdown")
	}
}
