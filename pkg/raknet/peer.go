// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"fmt"
	"net"
	"sync"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
)

// peerOwner is either a Listener or a Client.
type peerOwner interface {
	emit(e Event)

	// peerDisconnected is called after a peer's session was terminated.
	peerDisconnected(p *Peer, reason error)

	// peerError is called for a peer's session error, before its possible termination.
	peerError(p *Peer, err error)
}

// Peer is the remote end of a connection.
type Peer struct {
	session *session.Session
	owner   peerOwner

	connectOnce  sync.Once
	connected    chan struct{}
	closeOnce    sync.Once
	disconnected chan struct{}
	reason       error
}

// newPeer creates a Peer and its session.
func newPeer(owner peerOwner, setup session.Setup) (*Peer, error) {
	p := &Peer{
		owner:        owner,
		connected:    make(chan struct{}),
		disconnected: make(chan struct{}),
	}

	setup.Callbacks = peerCallbacks{p}

	// The session might call back during its creation, its pointer is not yet known then.
	var err error
	if p.session, err = session.NewSession(setup); err != nil {
		return nil, err
	}
	return p, nil
}

// Address of the remote peer.
func (p *Peer) Address() *net.UDPAddr {
	return p.session.Address()
}

// Guid of the remote peer.
func (p *Peer) Guid() int64 {
	return p.session.Guid()
}

// Mtu of this connection.
func (p *Peer) Mtu() int {
	return p.session.Mtu()
}

// IsConnected checks if the login is completed and the connection is still alive.
func (p *Peer) IsConnected() bool {
	return p.session.State() == session.Connected
}

// Latency statistics of this connection.
func (p *Peer) Latency() Latency {
	return p.session.Latency()
}

// Send a message to this Peer on the given channel. Channels are only relevant for ordered and sequenced messages.
func (p *Peer) Send(rel Reliability, channel uint8, payload []byte) error {
	_, err := p.session.SendMessage(rel, channel, payload)
	return err
}

// Disconnect from this Peer, notifying it.
func (p *Peer) Disconnect() {
	p.session.Disconnect()
}

// Connected is closed after a completed login.
func (p *Peer) Connected() <-chan struct{} {
	return p.connected
}

// Done is closed after this connection was terminated. Err reports the reason afterwards.
func (p *Peer) Done() <-chan struct{} {
	return p.disconnected
}

// Err returns the reason of the termination, which is nil or ErrDisconnected for local disconnects. It must only be
// called after Done was closed.
func (p *Peer) Err() error {
	return p.reason
}

func (p *Peer) String() string {
	if p == nil || p.session == nil {
		return "Peer(nil)"
	}
	return fmt.Sprintf("Peer(%v, %d)", p.session.Address(), p.session.Guid())
}

// peerCallbacks passes a session's callbacks to its Peer and its owner.
type peerCallbacks struct {
	peer *Peer
}

func (pc peerCallbacks) OnConnect(_ *session.Session) {
	pc.peer.connectOnce.Do(func() { close(pc.peer.connected) })
	pc.peer.owner.emit(Event{Peer: pc.peer, Type: PeerConnected})
}

func (pc peerCallbacks) OnDisconnect(_ *session.Session, reason error) {
	pc.peer.closeOnce.Do(func() {
		pc.peer.reason = reason
		close(pc.peer.disconnected)
	})
	pc.peer.owner.peerDisconnected(pc.peer, reason)
	pc.peer.owner.emit(Event{Peer: pc.peer, Type: PeerDisconnected, Message: reason})
}

func (pc peerCallbacks) OnMessage(_ *session.Session, channel uint8, payload []byte) {
	pc.peer.owner.emit(Event{
		Peer:    pc.peer,
		Type:    ReceivedMessage,
		Message: ReceivedPayload{Channel: channel, Payload: payload},
	})
}

func (pc peerCallbacks) OnAcknowledge(_ *session.Session, record msgs.Record, msg msgs.EncapsulatedMessage) {
	pc.peer.owner.emit(Event{Peer: pc.peer, Type: MessageAcknowledged, Message: newReceipt(record, msg)})
}

func (pc peerCallbacks) OnNotAcknowledge(_ *session.Session, record msgs.Record, msg msgs.EncapsulatedMessage) {
	pc.peer.owner.emit(Event{Peer: pc.peer, Type: MessageLost, Message: newReceipt(record, msg)})
}

func (pc peerCallbacks) OnSessionError(_ *session.Session, err error) {
	pc.peer.owner.peerError(pc.peer, err)
	pc.peer.owner.emit(Event{Peer: pc.peer, Type: PeerError, Message: err})
}

func newReceipt(record msgs.Record, msg msgs.EncapsulatedMessage) Receipt {
	return Receipt{
		SequenceNumber: record.Index,
		Reliability:    msg.Reliability,
		MessageIndex:   msg.MessageIndex,
		Channel:        msg.OrderChannel,
		Payload:        msg.Payload,
	}
}
