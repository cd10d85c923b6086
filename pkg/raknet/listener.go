// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
)

// Listener is a RakNet server, accepting multiple clients on one UDP socket.
type Listener struct {
	conf  ListenerConfig
	clock clockwork.Clock

	transport *udpTransport
	sink      *eventSink

	// peers maps an address string to its *Peer.
	peers     sync.Map
	peerCount atomic.Int64

	banned       map[string]struct{}
	blocked      map[string]time.Time
	blockedMutex sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewListener for a ListenerConfig. The Listener must be started afterwards.
func NewListener(conf ListenerConfig) (*Listener, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if conf.Guid == 0 {
		conf.Guid = RandomGuid()
	}
	if conf.StatusBuffer < 0 {
		conf.StatusBuffer = 0
	}
	if conf.Clock == nil {
		conf.Clock = clockwork.NewRealClock()
	}
	conf.Session.Mtu = conf.Mtu

	l := &Listener{
		conf:    conf,
		clock:   conf.Clock,
		banned:  make(map[string]struct{}),
		blocked: make(map[string]time.Time),
	}
	for _, banned := range conf.Banned {
		l.banned[net.ParseIP(banned).String()] = struct{}{}
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.sink = newEventSink(l.ctx, conf.StatusBuffer)
	return l, nil
}

func (l *Listener) log() *log.Entry {
	fields := log.Fields{"listener": l.conf.Address, "guid": l.conf.Guid}
	if l.transport != nil {
		fields["listener"] = l.transport.localAddr()
	}
	return log.WithFields(fields)
}

// Start binds the UDP socket and starts the receiving and updating goroutines.
func (l *Listener) Start() (err error) {
	if l.transport, err = listenUDP(l.conf.Address, l.conf.Socket); err != nil {
		return
	}

	l.group, _ = errgroup.WithContext(l.ctx)
	l.group.Go(func() error { return l.transport.receive(l.handleDatagram) })
	l.group.Go(l.updater)

	l.log().Info("Started RakNet listener")
	return nil
}

// Guid of this server.
func (l *Listener) Guid() int64 {
	return l.conf.Guid
}

// Addr returns the bound address, or nil if not started.
func (l *Listener) Addr() *net.UDPAddr {
	if l.transport == nil {
		return nil
	}
	return l.transport.localAddr()
}

// Status channel of Events. It is closed after the Listener was closed.
func (l *Listener) Status() <-chan Event {
	return l.sink.status
}

// Peers returns all currently known peers, including those within their login.
func (l *Listener) Peers() (peers []*Peer) {
	l.peers.Range(func(_, value any) bool {
		peers = append(peers, value.(*Peer))
		return true
	})
	return
}

func (l *Listener) emit(e Event) {
	l.sink.emit(e)
}

func (l *Listener) peerDisconnected(p *Peer, reason error) {
	if l.peers.CompareAndDelete(p.Address().String(), p) {
		l.peerCount.Add(-1)
	}

	l.log().WithFields(log.Fields{
		"peer":   p,
		"reason": reason,
	}).Info("Peer disconnected")
}

func (l *Listener) peerError(p *Peer, err error) {
	if err != session.ErrPacketFlood {
		return
	}

	l.block(p.Address().IP)
	p.session.Terminate(err)
}

// block an IP address for the configured flood block period.
func (l *Listener) block(ip net.IP) {
	if l.conf.FloodBlock <= 0 {
		return
	}

	l.blockedMutex.Lock()
	l.blocked[ip.String()] = l.clock.Now().Add(l.conf.FloodBlock)
	l.blockedMutex.Unlock()

	l.log().WithFields(log.Fields{
		"ip":       ip,
		"duration": l.conf.FloodBlock,
	}).Warn("Blocking flooding address")
}

func (l *Listener) isBlocked(ip net.IP) bool {
	l.blockedMutex.Lock()
	defer l.blockedMutex.Unlock()

	until, ok := l.blocked[ip.String()]
	if !ok {
		return false
	} else if l.clock.Now().After(until) {
		delete(l.blocked, ip.String())
		return false
	}
	return true
}

func (l *Listener) updater() error {
	ticker := l.clock.NewTicker(l.conf.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return nil

		case <-ticker.Chan():
			l.peers.Range(func(_, value any) bool {
				value.(*Peer).session.Update()
				return true
			})
		}
	}
}

func (l *Listener) handleDatagram(data []byte, addr *net.UDPAddr) {
	if l.isBlocked(addr.IP) {
		return
	}

	id := data[0]
	if msgs.IsCustomFrame(id) || id == msgs.ACK || id == msgs.NACK {
		if value, ok := l.peers.Load(addr.String()); ok {
			value.(*Peer).session.HandleDatagram(data)
		} else {
			l.log().WithFields(log.Fields{
				"peer": addr,
				"id":   id,
			}).Debug("Dropping session datagram from an unknown address")
		}
		return
	}

	msg, err := msgs.UnmarshalBytes(data)
	if err != nil {
		l.log().WithFields(log.Fields{
			"peer":  addr,
			"error": err,
		}).Debug("Dropping undecodable datagram")
		return
	}

	switch msg := msg.(type) {
	case *msgs.OpenConnectionRequestOne:
		l.handleRequestOne(msg, addr)

	case *msgs.OpenConnectionRequestTwo:
		l.handleRequestTwo(msg, addr)

	default:
		l.log().WithFields(log.Fields{
			"peer":    addr,
			"message": msg,
		}).Warn("Dropping unexpected offline message")
	}
}

func (l *Listener) reply(msg msgs.Message, addr *net.UDPAddr) {
	if err := l.transport.sendMessage(msg, addr); err != nil {
		l.log().WithFields(log.Fields{
			"peer":    addr,
			"message": msg,
			"error":   err,
		}).Debug("Sending offline message failed")
	}
}

func (l *Listener) handleRequestOne(req *msgs.OpenConnectionRequestOne, addr *net.UDPAddr) {
	if req.ProtocolVersion != msgs.ProtocolVersion {
		l.reply(&msgs.IncompatibleProtocolVersion{ProtocolVersion: msgs.ProtocolVersion, ServerGuid: l.conf.Guid}, addr)
		return
	}

	// A new handshake from a known address replaces its former connection.
	if value, ok := l.peers.Load(addr.String()); ok {
		value.(*Peer).session.Terminate(fmt.Errorf("client %v reinstantiated its connection", addr))
	}

	if replyMsg := l.admission(addr, 0); replyMsg != nil {
		l.reply(replyMsg, addr)
		return
	}

	if int(req.Mtu) > l.conf.Mtu {
		l.log().WithFields(log.Fields{
			"peer": addr,
			"mtu":  req.Mtu,
		}).Debug("Ignoring first open connection request with a too large MTU")
		return
	}

	l.reply(&msgs.OpenConnectionReplyOne{ServerGuid: l.conf.Guid, Mtu: req.Mtu}, addr)
}

func (l *Listener) handleRequestTwo(req *msgs.OpenConnectionRequestTwo, addr *net.UDPAddr) {
	replyTwo := &msgs.OpenConnectionReplyTwo{ServerGuid: l.conf.Guid, ClientAddress: addr, Mtu: req.Mtu}

	// A repeated request of a pending login, whose reply got lost.
	if value, ok := l.peers.Load(addr.String()); ok {
		p := value.(*Peer)
		if p.Guid() == req.ClientGuid && p.session.State() == session.Disconnected && p.Mtu() == int(req.Mtu) {
			l.reply(replyTwo, addr)
			return
		}
	}

	if replyMsg := l.admission(addr, req.ClientGuid); replyMsg != nil {
		l.reply(replyMsg, addr)
		return
	}

	if int(req.Mtu) > l.conf.Mtu || int(req.Mtu) < session.MinimumMtu {
		l.log().WithFields(log.Fields{
			"peer": addr,
			"mtu":  req.Mtu,
		}).Debug("Ignoring second open connection request with an invalid MTU")
		return
	}

	sessionConf := l.conf.Session
	sessionConf.Mtu = int(req.Mtu)

	p, err := newPeer(l, session.Setup{
		Address:   addr,
		Guid:      req.ClientGuid,
		Config:    sessionConf,
		Role:      session.NewServerRole(),
		Transport: l.transport,
		Clock:     l.clock,
	})
	if err != nil {
		l.log().WithFields(log.Fields{
			"peer":  addr,
			"error": err,
		}).Warn("Creating session failed")
		return
	}

	if _, loaded := l.peers.LoadOrStore(addr.String(), p); loaded {
		l.log().WithField("peer", addr).Debug("Concurrent handshake for an address, dropping the newer one")
		return
	}
	l.peerCount.Add(1)

	l.log().WithField("peer", p).Info("Accepted new peer, awaiting its login")
	l.reply(replyTwo, addr)
}

// admission returns an error message if this client must be refused, or nil otherwise. A zero guid is not checked.
func (l *Listener) admission(addr *net.UDPAddr, guid int64) msgs.Message {
	if _, ok := l.peers.Load(addr.String()); ok {
		return msgs.NewSignalMessage(msgs.ALREADY_CONNECTED)
	}

	if guid != 0 {
		known := false
		l.peers.Range(func(_, value any) bool {
			known = value.(*Peer).Guid() == guid
			return !known
		})
		if known {
			return msgs.NewSignalMessage(msgs.ALREADY_CONNECTED)
		}
	}

	if l.conf.MaxConnections >= 0 && l.peerCount.Load() >= int64(l.conf.MaxConnections) {
		return msgs.NewSignalMessage(msgs.NO_FREE_INCOMING_CONNECTIONS)
	}

	if _, ok := l.banned[addr.IP.String()]; ok {
		return &msgs.ConnectionBanned{ServerGuid: l.conf.Guid}
	}

	return nil
}

// Close this Listener, disconnecting all peers.
func (l *Listener) Close() (err error) {
	l.closeOnce.Do(func() {
		l.log().Info("Closing RakNet listener")

		// Events of the disconnecting peers are dropped, the status channel might not be read anymore.
		l.cancel()
		for _, p := range l.Peers() {
			p.Disconnect()
		}

		if l.transport != nil {
			if closeErr := l.transport.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}
		if l.group != nil {
			if groupErr := l.group.Wait(); groupErr != nil {
				err = multierror.Append(err, groupErr)
			}
		}

		l.sink.close()
	})
	return
}
