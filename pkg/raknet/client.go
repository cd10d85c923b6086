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

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/stages"
)

// handshakeBuffer is the amount of offline messages queued for the handshake.
const handshakeBuffer = 8

// Client is a RakNet client, connecting to exactly one server.
type Client struct {
	conf  ClientConfig
	clock clockwork.Clock

	serverAddr *net.UDPAddr
	transport  *udpTransport
	sink       *eventSink

	handshakeIn chan msgs.Message
	peer        atomic.Pointer[Peer]

	connectMutex sync.Mutex
	started      bool

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewClient for a ClientConfig.
func NewClient(conf ClientConfig) (*Client, error) {
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

	c := &Client{
		conf:        conf,
		clock:       conf.Clock,
		handshakeIn: make(chan msgs.Message, handshakeBuffer),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.sink = newEventSink(c.ctx, conf.StatusBuffer)
	return c, nil
}

func (c *Client) log() *log.Entry {
	return log.WithFields(log.Fields{
		"client": c.conf.Guid,
		"server": c.serverAddr,
	})
}

// Guid of this client.
func (c *Client) Guid() int64 {
	return c.conf.Guid
}

// Status channel of Events. It is closed after the Client was closed.
func (c *Client) Status() <-chan Event {
	return c.sink.status
}

// Peer is the connected server, or nil.
func (c *Client) Peer() *Peer {
	return c.peer.Load()
}

func (c *Client) emit(e Event) {
	c.sink.emit(e)
}

func (c *Client) peerDisconnected(_ *Peer, reason error) {
	c.log().WithField("reason", reason).Info("Disconnected from server")
}

func (c *Client) peerError(_ *Peer, err error) {
	c.log().WithError(err).Warn("Connection to server failed")
}

// Connect to a server's address, performing both the handshake and the login. A Client might only be connected once.
// On failure, the Client is closed.
func (c *Client) Connect(ctx context.Context, address string) (p *Peer, err error) {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if c.started {
		return nil, fmt.Errorf("client was already started")
	}
	c.started = true

	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.serverAddr, err = net.ResolveUDPAddr("udp", address); err != nil {
		return
	}

	bindAddr := c.conf.Address
	if bindAddr == "" {
		bindAddr = ":0"
	}
	if c.transport, err = listenUDP(bindAddr, c.conf.Socket); err != nil {
		return
	}

	msgOut := make(chan msgs.Message)

	c.group, _ = errgroup.WithContext(c.ctx)
	c.group.Go(func() error { return c.transport.receive(c.handleDatagram) })
	c.group.Go(func() error { return c.forwardHandshake(msgOut) })

	c.log().Info("Starting handshake")

	state, err := c.handshake(ctx, msgOut)
	if err != nil {
		c.log().WithError(err).Warn("Handshake failed")
		return
	}

	sessionConf := c.conf.Session
	sessionConf.Mtu = state.Mtu

	if p, err = newPeer(c, session.Setup{
		Address:   c.serverAddr,
		Guid:      state.ServerGuid,
		Config:    sessionConf,
		Role:      session.NewClientRole(c.conf.Guid),
		Transport: c.transport,
		Clock:     c.clock,
	}); err != nil {
		return
	}
	c.peer.Store(p)
	c.group.Go(c.updater)

	c.log().WithField("mtu", state.Mtu).Info("Handshake finished, starting login")

	loginTimer := c.clock.NewTimer(c.conf.LoginTimeout)
	defer loginTimer.Stop()

	select {
	case <-p.Connected():
		c.log().Info("Connected to server")
		return p, nil

	case <-p.Done():
		err = p.Err()
		if err == nil {
			err = ErrConnectionFailed
		}

	case <-loginTimer.Chan():
		err = ErrTimeout
		p.session.Terminate(err)

	case <-ctx.Done():
		err = ctx.Err()
		p.session.Terminate(err)
	}
	return nil, err
}

// handshake runs the stages until an error or a result.
func (c *Client) handshake(ctx context.Context, msgOut chan<- msgs.Message) (state stages.State, err error) {
	sh := stages.NewStageHandler(stages.DefaultStages(), c.handshakeIn, msgOut, stages.Configuration{
		ClientGuid:    c.conf.Guid,
		ServerAddress: c.serverAddr,
		MtuSizes:      c.conf.MtuSizes,
		MaximumMtu:    c.conf.MaximumMtu,
		RetriesPerMtu: c.conf.RetriesPerMtu,
		Retries:       c.conf.Retries,
		RetryDelay:    c.conf.RetryDelay,
		Clock:         c.clock,
	})

	select {
	case stageErr, ok := <-sh.Error():
		if ok {
			err = stageErr
			return
		}
		state = sh.Result()
		return

	case <-ctx.Done():
		_ = sh.Close()
		go func() {
			for range sh.Error() {
			}
		}()
		err = ctx.Err()
		return
	}
}

func (c *Client) forwardHandshake(msgOut <-chan msgs.Message) error {
	for {
		select {
		case <-c.ctx.Done():
			return nil

		case msg := <-msgOut:
			if err := c.transport.sendMessage(msg, c.serverAddr); err != nil {
				c.log().WithFields(log.Fields{
					"message": msg,
					"error":   err,
				}).Debug("Sending handshake message failed")
			}
		}
	}
}

func (c *Client) updater() error {
	ticker := c.clock.NewTicker(c.conf.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return nil

		case <-ticker.Chan():
			if p := c.peer.Load(); p != nil {
				p.session.Update()
			}
		}
	}
}

func (c *Client) handleDatagram(data []byte, addr *net.UDPAddr) {
	if !addr.IP.Equal(c.serverAddr.IP) || addr.Port != c.serverAddr.Port {
		c.log().WithField("sender", addr).Debug("Dropping datagram from another address than the server's")
		return
	}

	if id := data[0]; msgs.IsCustomFrame(id) || id == msgs.ACK || id == msgs.NACK {
		if p := c.peer.Load(); p != nil {
			p.session.HandleDatagram(data)
		}
		return
	}

	msg, err := msgs.UnmarshalBytes(data)
	if err != nil {
		c.log().WithError(err).Debug("Dropping undecodable datagram")
		return
	}

	select {
	case c.handshakeIn <- msg:
	default:
		c.log().WithField("message", msg).Debug("Dropping offline message, handshake queue is full")
	}
}

// Close this Client, disconnecting from the server.
func (c *Client) Close() (err error) {
	c.closeOnce.Do(func() {
		c.log().Info("Closing RakNet client")

		c.cancel()
		if p := c.peer.Load(); p != nil {
			p.Disconnect()
		}

		if c.transport != nil {
			if closeErr := c.transport.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}
		if c.group != nil {
			if groupErr := c.group.Wait(); groupErr != nil {
				err = multierror.Append(err, groupErr)
			}
		}

		c.sink.close()
	})
	return
}
