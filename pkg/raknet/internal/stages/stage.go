// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stages implements the client side of the RakNet offline handshake, negotiating the MTU and exchanging
// identifiers before a session exists.
package stages

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// Configuration for stages.
type Configuration struct {
	// ClientGuid is this client's globally unique identifier.
	ClientGuid int64

	// ServerAddress to connect to.
	ServerAddress *net.UDPAddr

	// MtuSizes are tried in this order, larger ones first.
	MtuSizes []int

	// MaximumMtu caps both the attempted and the negotiated MTU.
	MaximumMtu int

	// RetriesPerMtu is the amount of OPEN_CONNECTION_REQUEST_1 sent for each MTU size.
	RetriesPerMtu int

	// Retries is the amount of OPEN_CONNECTION_REQUEST_2 sent before giving up.
	Retries int

	// RetryDelay between two requests without a reply.
	RetryDelay time.Duration

	// Clock for retry timers.
	Clock clockwork.Clock
}

// StageClose signals a closed stage, after calling the Close() method.
var StageClose = errors.New("stage closed down")

// Phase of the handshake.
type Phase int

const (
	Idle Phase = iota
	FirstRequestSent
	SecondRequestSent
	Assembled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FirstRequestSent:
		return "first request sent"
	case SecondRequestSent:
		return "second request sent"
	case Assembled:
		return "assembled"
	default:
		return fmt.Sprintf("unknown phase %d", int(p))
	}
}

// State for stages, both used as input and as an altered output.
type State struct {
	// Configuration to be used; should not be altered.
	Configuration Configuration

	// MsgIn and MsgOut are channels for incoming and outgoing offline messages of the server.
	MsgIn  <-chan msgs.Message
	MsgOut chan<- msgs.Message

	// StageError reports back the failure of a stage.
	StageError error

	// Phase of the handshake.
	Phase Phase

	// OPEN CONNECTION ONE STAGE
	// Mtu is the negotiated MTU, possibly lowered by the second stage.
	Mtu int
	// ServerGuid is the server's globally unique identifier.
	ServerGuid int64
	// OPEN CONNECTION ONE STAGE END

	// OPEN CONNECTION TWO STAGE
	// ClientAddress is this client's address as seen by the server.
	ClientAddress *net.UDPAddr
	// OPEN CONNECTION TWO STAGE END
}

// Stage described by this interface.
type Stage interface {
	// Handle this Stage's action based on the previous Stage's State and the StageHandler's close channel.
	Handle(state *State, closeChan <-chan struct{})
}

// errRetry is returned by receiveReply if no reply arrived in time.
var errRetry = errors.New("no reply within the retry delay")

// sendMsgOrClose passes a message to MsgOut unless the stage is closed.
func sendMsgOrClose(state *State, closeChan <-chan struct{}, msg msgs.Message) error {
	select {
	case <-closeChan:
		return StageClose
	case state.MsgOut <- msg:
		return nil
	}
}

// receiveReply waits up to the RetryDelay for a message accepted by the filter. Error packets abort with a
// HandshakeError, other messages are ignored.
func receiveReply(state *State, closeChan <-chan struct{}, accept func(msgs.Message) bool) (msgs.Message, error) {
	timeout := state.Configuration.Clock.After(state.Configuration.RetryDelay)

	for {
		select {
		case <-closeChan:
			return nil, StageClose

		case <-timeout:
			return nil, errRetry

		case msg := <-state.MsgIn:
			if err := errorPacket(msg); err != nil {
				return nil, err
			}
			if accept(msg) {
				return msg, nil
			}

			log.WithFields(log.Fields{
				"server":  state.Configuration.ServerAddress,
				"message": msg,
				"phase":   state.Phase,
			}).Debug("Handshake ignores unexpected message")
		}
	}
}
