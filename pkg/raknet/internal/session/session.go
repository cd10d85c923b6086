// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session implements the RakNet reliability layer of one connection: framing, ordering, deduplication,
// acknowledgement, retransmission, keep-alives and the login exchange.
package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/utils"
)

// Transport sends raw datagrams. It is shared between all sessions of a socket.
type Transport interface {
	SendTo(b []byte, addr *net.UDPAddr) error
}

// Callbacks are informed about a Session's events. They are never called while the Session is locked, so they may
// call back into the Session.
type Callbacks interface {
	// OnConnect after a completed login.
	OnConnect(s *Session)

	// OnDisconnect after the Session was terminated; reason is nil or the cause.
	OnDisconnect(s *Session, reason error)

	// OnMessage for each delivered application message.
	OnMessage(s *Session, channel uint8, payload []byte)

	// OnAcknowledge if a receipt-requiring message was acknowledged.
	OnAcknowledge(s *Session, record msgs.Record, msg msgs.EncapsulatedMessage)

	// OnNotAcknowledge if an unreliable receipt-requiring message was lost.
	OnNotAcknowledge(s *Session, record msgs.Record, msg msgs.EncapsulatedMessage)

	// OnSessionError for failures, e.g., protocol violations, timeouts or floods.
	OnSessionError(s *Session, err error)
}

// Setup of a new Session.
type Setup struct {
	// Address of the remote peer.
	Address *net.UDPAddr

	// Guid of the remote peer.
	Guid int64

	Config    Config
	Role      Role
	Transport Transport
	Callbacks Callbacks

	// Clock defaults to the real clock if nil.
	Clock clockwork.Clock
}

// Session is the state of one RakNet connection. All methods are safe for concurrent use.
type Session struct {
	mutex  sync.Mutex
	events []func()

	address   *net.UDPAddr
	guid      int64
	config    Config
	role      Role
	transport Transport
	callbacks Callbacks
	clock     clockwork.Clock
	created   time.Time

	state      State
	terminated bool

	// Sending
	sendSequenceNumber uint32
	messageIndex       uint32
	splitId            uint16
	orderSendIndex     [MaxChannels]uint32
	sequenceSendIndex  [MaxChannels]uint32
	sendQueue          []*msgs.EncapsulatedMessage
	recoveryQueue      *utils.RecoveryQueue
	ackReceipts        map[uint32][]msgs.EncapsulatedMessage

	// Receiving
	receiveSequenceNumber int64
	reliableIndices       *lru.Cache[uint32, struct{}]
	splitQueue            *utils.SplitQueue
	orderQueues           [MaxChannels]*utils.OrderQueue
	sequenceReceiveIndex  [MaxChannels]int64

	// Timing
	lastPacketSendTime        time.Time
	lastPacketReceiveTime     time.Time
	lastRecoverySendTime      time.Time
	lastKeepAliveSendTime     time.Time
	lastPingSendTime          time.Time
	packetsSentThisSecond     int
	packetsReceivedThisSecond int
	lastSentResetTime         time.Time
	lastReceivedResetTime     time.Time
	floodReported             bool

	latency        Latency
	pingTimestamps []int64
}

// NewSession creates a Session and starts its Role's login.
func NewSession(setup Setup) (s *Session, err error) {
	if err = setup.Config.Validate(); err != nil {
		return
	}
	if setup.Role == nil || setup.Transport == nil || setup.Callbacks == nil || setup.Address == nil {
		err = fmt.Errorf("incomplete session setup")
		return
	}

	clock := setup.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	reliableIndices, lruErr := lru.New[uint32, struct{}](setup.Config.DedupCapacity)
	if lruErr != nil {
		err = lruErr
		return
	}

	now := clock.Now()
	s = &Session{
		address:   setup.Address,
		guid:      setup.Guid,
		config:    setup.Config,
		role:      setup.Role,
		transport: setup.Transport,
		callbacks: setup.Callbacks,
		clock:     clock,
		created:   now,

		state: setup.Role.Initial(),

		recoveryQueue: utils.NewRecoveryQueue(),
		ackReceipts:   make(map[uint32][]msgs.EncapsulatedMessage),

		receiveSequenceNumber: -1,
		reliableIndices:       reliableIndices,
		splitQueue:            utils.NewSplitQueue(setup.Config.MaxSplitsPerQueue, setup.Config.MaxSplitCount),

		lastPacketReceiveTime: now,
		lastRecoverySendTime:  now,
		lastSentResetTime:     now,
		lastReceivedResetTime: now,
	}

	for i := 0; i < MaxChannels; i++ {
		s.orderQueues[i] = utils.NewOrderQueue()
		s.sequenceReceiveIndex[i] = -1
	}

	s.locked(func() {
		if loginErr := s.role.Login(s); loginErr != nil {
			err = loginErr
			s.terminate(loginErr)
		}
	})
	if err != nil {
		s = nil
	}
	return
}

func (s *Session) log() *log.Entry {
	return log.WithFields(log.Fields{
		"peer":  s.address.String(),
		"guid":  s.guid,
		"state": s.state,
	})
}

// locked executes f while holding the mutex and dispatches the collected events afterwards.
func (s *Session) locked(f func()) {
	s.mutex.Lock()
	f()
	events := s.events
	s.events = nil
	s.mutex.Unlock()

	for _, event := range events {
		event()
	}
}

// emit queues an event to be dispatched after unlocking.
func (s *Session) emit(event func()) {
	s.events = append(s.events, event)
}

// timestamp in milliseconds since this Session's creation.
func (s *Session) timestamp() int64 {
	return s.clock.Since(s.created).Milliseconds()
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}

	s.log().WithField("new-state", state).Debug("Session changes state")
	s.state = state

	if state == Connected {
		s.emit(func() { s.callbacks.OnConnect(s) })
	}
}

// Address of the remote peer.
func (s *Session) Address() *net.UDPAddr {
	return s.address
}

// Guid of the remote peer.
func (s *Session) Guid() int64 {
	return s.guid
}

// Mtu of this Session.
func (s *Session) Mtu() int {
	return s.config.Mtu
}

// State of this Session.
func (s *Session) State() (state State) {
	s.locked(func() { state = s.state })
	return
}

// IsClosed checks if this Session was terminated.
func (s *Session) IsClosed() (closed bool) {
	s.locked(func() { closed = s.terminated })
	return
}

// Latency statistics of this Session.
func (s *Session) Latency() (latency Latency) {
	s.locked(func() { latency = s.latency })
	return
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(%v, %d)", s.address, s.guid)
}

// Terminate this Session. Later calls are no-ops.
func (s *Session) Terminate(reason error) {
	s.locked(func() { s.terminate(reason) })
}

func (s *Session) terminate(reason error) {
	if s.terminated {
		return
	}

	if isExplicit(reason) {
		s.log().WithError(reason).Info("Session terminated")
	} else {
		s.log().WithError(reason).Error("Session terminated")
	}

	s.terminated = true
	s.state = Disconnected

	s.sendQueue = nil
	s.recoveryQueue.Clear()
	s.ackReceipts = make(map[uint32][]msgs.EncapsulatedMessage)
	s.splitQueue.Clear()
	s.reliableIndices.Purge()
	for _, oq := range s.orderQueues {
		oq.Clear()
	}
	s.pingTimestamps = nil

	if !isExplicit(reason) {
		s.emit(func() { s.callbacks.OnSessionError(s, reason) })
	}
	s.emit(func() { s.callbacks.OnDisconnect(s, reason) })
}

// Disconnect sends a DISCONNECTION_NOTIFICATION, flushes it and terminates with ErrDisconnected.
func (s *Session) Disconnect() {
	s.locked(func() {
		if s.terminated {
			return
		}

		if _, err := s.sendSignal(msgs.DISCONNECTION_NOTIFICATION, msgs.Unreliable); err != nil {
			s.log().WithError(err).Warn("Failed to queue disconnection notification")
		}
		s.flushSendQueue(s.clock.Now())
		s.terminate(ErrDisconnected)
	})
}
