// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

const (
	sequenceSpace = int64(msgs.MaxSequenceNumber) + 1

	// maxNackRange limits the amount of sequence numbers reported missing by one NACK.
	maxNackRange = 1 << 12
)

// sequenceDelta is the distance from last to seq within the 24-bit sequence number space, in (-2^23, 2^23]. Before
// the first frame, last is -1 and every sequence number is ahead.
func sequenceDelta(last int64, seq uint32) int64 {
	if last < 0 {
		return int64(seq) - last
	}

	d := (int64(seq) - last) % sequenceSpace
	if d < 0 {
		d += sequenceSpace
	}
	if d > sequenceSpace/2 {
		d -= sequenceSpace
	}
	return d
}

// HandleDatagram parses and handles a CUSTOM frame, an ACK or a NACK. A malformed datagram terminates the Session.
func (s *Session) HandleDatagram(data []byte) {
	msg, err := msgs.UnmarshalBytes(data)
	if err != nil {
		s.Terminate(fmt.Errorf("parsing datagram: %w", err))
		return
	}

	switch msg := msg.(type) {
	case *msgs.CustomFrame:
		s.HandleCustom(msg)
	case *msgs.AcknowledgeMessage:
		s.HandleAcknowledge(msg)
	default:
		s.log().WithField("message", msg).Debug("Dropping unexpected datagram")
	}
}

// HandleCustom processes an inbound CustomFrame and acknowledges it.
func (s *Session) HandleCustom(frame *msgs.CustomFrame) {
	s.locked(func() { s.handleCustom(frame) })
}

func (s *Session) handleCustom(frame *msgs.CustomFrame) {
	if s.terminated {
		return
	}
	s.markReceived()

	delta := sequenceDelta(s.receiveSequenceNumber, frame.SequenceNumber)
	if delta > 1 {
		s.sendAcknowledge(false, s.missingRecords(frame.SequenceNumber, delta-1)...)
	}

	if delta > 0 {
		s.receiveSequenceNumber = int64(frame.SequenceNumber)

		for _, em := range frame.Messages {
			if err := s.handleEncapsulated(em); err != nil {
				s.terminate(err)
				return
			}
			if s.terminated {
				return
			}
		}
	} else {
		s.log().WithField("sequence number", frame.SequenceNumber).Debug("Dropping outdated frame")
	}

	s.sendAcknowledge(true, msgs.NewRecord(frame.SequenceNumber))
}

// missingRecords are the records of the skipped sequence numbers right before seq.
func (s *Session) missingRecords(seq uint32, skipped int64) []msgs.Record {
	if skipped > maxNackRange {
		skipped = maxNackRange
	}

	last := (seq - 1) & msgs.MaxSequenceNumber
	first := (seq - uint32(skipped)) & msgs.MaxSequenceNumber

	if first <= last {
		return []msgs.Record{msgs.NewRangedRecord(first, last)}
	}
	return []msgs.Record{
		msgs.NewRangedRecord(first, msgs.MaxSequenceNumber),
		msgs.NewRangedRecord(0, last),
	}
}

func (s *Session) markReceived() {
	now := s.clock.Now()
	s.resetCounters(now)

	s.lastPacketReceiveTime = now
	s.packetsReceivedThisSecond++

	if s.packetsReceivedThisSecond > s.config.MaxPacketsPerSecond && !s.floodReported {
		s.floodReported = true
		s.log().WithField("packets", s.packetsReceivedThisSecond).Warn("Remote peer exceeds the packet budget")
		s.emit(func() { s.callbacks.OnSessionError(s, ErrPacketFlood) })
	}
}

// handleEncapsulated deduplicates, reassembles and orders an inbound message.
func (s *Session) handleEncapsulated(em *msgs.EncapsulatedMessage) error {
	if em.OrderChannel >= MaxChannels {
		return fmt.Errorf("channel %d: %w", em.OrderChannel, ErrInvalidChannel)
	}

	if em.Reliability.IsReliable() {
		if s.reliableIndices.Contains(em.MessageIndex) {
			s.log().WithField("message index", em.MessageIndex).Debug("Dropping duplicate message")
			return nil
		}
		s.reliableIndices.Add(em.MessageIndex, struct{}{})
	}

	if em.Split {
		msg, evicted, err := s.splitQueue.Handle(em)
		if evicted > 0 {
			s.log().WithField("groups", evicted).Warn("Evicted unreliable split groups")
		}
		if err != nil || msg == nil {
			return err
		}
		em = msg
	}

	channel := em.OrderChannel
	switch {
	case em.Reliability.IsOrdered():
		deliverable, err := s.orderQueues[channel].Push(em)
		if err != nil {
			return fmt.Errorf("channel %d, order index %d: %w", channel, em.OrderIndex, err)
		}
		for _, msg := range deliverable {
			if err := s.deliver(channel, msg.Payload); err != nil {
				return err
			}
		}

	case em.Reliability.IsSequenced():
		if int64(em.OrderIndex) <= s.sequenceReceiveIndex[channel] {
			s.log().WithFields(log.Fields{
				"channel":     channel,
				"order index": em.OrderIndex,
			}).Debug("Dropping outdated sequenced message")
			return nil
		}
		s.sequenceReceiveIndex[channel] = int64(em.OrderIndex)
		return s.deliver(channel, em.Payload)

	default:
		return s.deliver(channel, em.Payload)
	}

	return nil
}

// deliver a complete payload, either to an internal handler or to the application.
func (s *Session) deliver(channel uint8, payload []byte) error {
	if s.terminated {
		return nil
	}
	if len(payload) == 0 {
		s.log().Debug("Dropping empty message")
		return nil
	}

	switch payload[0] {
	case msgs.CONNECTED_PING:
		var ping msgs.ConnectedPing
		if err := ping.Unmarshal(bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("parsing connected ping: %w", err)
		}
		pong := msgs.ConnectedPong{PingTimestamp: ping.Timestamp, PongTimestamp: s.timestamp()}
		_, err := s.sendPacket(msgs.Unreliable, 0, &pong)
		return err

	case msgs.CONNECTED_PONG:
		var pong msgs.ConnectedPong
		if err := pong.Unmarshal(bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("parsing connected pong: %w", err)
		}
		s.handlePong(pong)
		return nil

	case msgs.DETECT_LOST_CONNECTIONS:
		return nil

	case msgs.DISCONNECTION_NOTIFICATION:
		s.terminate(ErrDisconnectNotified)
		return nil
	}

	if handled, err := s.role.HandleLogin(s, payload); err != nil || handled {
		return err
	}

	s.emit(func() { s.callbacks.OnMessage(s, channel, payload) })
	return nil
}

// HandleAcknowledge processes an inbound ACK or NACK.
func (s *Session) HandleAcknowledge(am *msgs.AcknowledgeMessage) {
	s.locked(func() {
		if s.terminated {
			return
		}
		s.markReceived()

		if am.IsAcknowledgement() {
			s.handleAck(am.Records)
		} else {
			s.handleNack(am.Records)
		}
	})
}

func (s *Session) handleAck(records []msgs.Record) {
	for _, record := range msgs.Simplify(records) {
		for _, em := range s.ackReceipts[record.Index] {
			em, record := em, record
			s.emit(func() { s.callbacks.OnAcknowledge(s, record, em) })
		}
		delete(s.ackReceipts, record.Index)

		s.recoveryQueue.Remove(record.Index)
	}
}

func (s *Session) handleNack(records []msgs.Record) {
	for _, record := range msgs.Simplify(records) {
		for _, em := range s.ackReceipts[record.Index] {
			if em.Reliability.IsReliable() {
				continue
			}
			em, record := em, record
			s.emit(func() { s.callbacks.OnNotAcknowledge(s, record, em) })
		}
		delete(s.ackReceipts, record.Index)

		messages, ok := s.recoveryQueue.Get(record.Index)
		if !ok {
			continue
		}

		sequenceNumber, err := s.sendFrame(messages, false)
		if err != nil {
			s.terminate(err)
			return
		}
		s.recoveryQueue.Rename(record.Index, sequenceNumber)

		s.log().WithFields(log.Fields{
			"old sequence number": record.Index,
			"new sequence number": sequenceNumber,
		}).Debug("Resent lost frame")
	}
}
