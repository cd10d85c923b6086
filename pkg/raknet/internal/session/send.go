// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"time"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/utils"
)

// SendMessage queues a payload for sending. It will be framed and transmitted by the next Update.
//
// The returned EncapsulatedMessage is a copy of the queued message, carrying the assigned indices.
func (s *Session) SendMessage(rel msgs.Reliability, channel uint8, payload []byte) (em msgs.EncapsulatedMessage, err error) {
	s.locked(func() { em, err = s.sendMessage(rel, channel, payload) })
	return
}

func (s *Session) sendMessage(rel msgs.Reliability, channel uint8, payload []byte) (msgs.EncapsulatedMessage, error) {
	switch {
	case s.terminated:
		return msgs.EncapsulatedMessage{}, ErrClosed
	case !rel.IsValid():
		return msgs.EncapsulatedMessage{}, msgs.ErrInvalidReliability
	case channel >= MaxChannels:
		return msgs.EncapsulatedMessage{}, ErrInvalidChannel
	}

	em := &msgs.EncapsulatedMessage{
		Reliability:  rel,
		OrderChannel: channel,
		Payload:      append([]byte(nil), payload...),
	}

	needsSplit := utils.NeedsSplit(em, s.config.Mtu)
	if needsSplit {
		count := utils.SplitCount(rel, s.config.Mtu, len(payload))
		if count <= 0 || uint32(count) > s.config.MaxSplitCount {
			return msgs.EncapsulatedMessage{}, ErrMessageTooLarge
		}
	}

	if rel.IsReliable() {
		em.MessageIndex = s.nextMessageIndex()
	}
	if rel.IsOrdered() {
		em.OrderIndex = s.orderSendIndex[channel]
		s.orderSendIndex[channel] = (s.orderSendIndex[channel] + 1) & msgs.MaxSequenceNumber
	} else if rel.IsSequenced() {
		em.OrderIndex = s.sequenceSendIndex[channel]
		s.sequenceSendIndex[channel] = (s.sequenceSendIndex[channel] + 1) & msgs.MaxSequenceNumber
	}

	if needsSplit {
		s.splitId++
		parts, err := utils.Split(*em, s.config.Mtu, s.splitId, s.nextMessageIndex)
		if err != nil {
			return msgs.EncapsulatedMessage{}, err
		}
		s.sendQueue = append(s.sendQueue, parts...)
	} else {
		s.sendQueue = append(s.sendQueue, em)
	}

	return em.Clone(), nil
}

// sendPacket queues a marshalled Message.
func (s *Session) sendPacket(rel msgs.Reliability, channel uint8, msg msgs.Message) (msgs.EncapsulatedMessage, error) {
	payload, err := msgs.MarshalBytes(msg)
	if err != nil {
		return msgs.EncapsulatedMessage{}, err
	}
	return s.sendMessage(rel, channel, payload)
}

// sendSignal queues a message consisting only of its id.
func (s *Session) sendSignal(id uint8, rel msgs.Reliability) (msgs.EncapsulatedMessage, error) {
	return s.sendPacket(rel, 0, msgs.NewSignalMessage(id))
}

func (s *Session) nextMessageIndex() uint32 {
	index := s.messageIndex
	s.messageIndex = (s.messageIndex + 1) & msgs.MaxSequenceNumber
	return index
}

// flushSendQueue packs queued messages into frames within the per-second budget.
func (s *Session) flushSendQueue(now time.Time) {
	s.resetCounters(now)

	for len(s.sendQueue) > 0 && s.packetsSentThisSecond < s.config.MaxPacketsPerSecond {
		size := msgs.CustomFrameHeaderSize
		n := 0
		for n < len(s.sendQueue) && (n == 0 || size+s.sendQueue[n].Size() <= s.config.Mtu) {
			size += s.sendQueue[n].Size()
			n++
		}

		batch := s.sendQueue[:n:n]
		s.sendQueue = s.sendQueue[n:]

		if _, err := s.sendFrame(batch, true); err != nil {
			s.terminate(err)
			return
		}
	}

	if len(s.sendQueue) == 0 {
		s.sendQueue = nil
	}
}

// sendFrame transmits messages in a new CustomFrame with the next sequence number. Receipt-requiring messages are
// tracked under this number. If track is set, reliable messages are stored in the recovery queue.
func (s *Session) sendFrame(messages []*msgs.EncapsulatedMessage, track bool) (sequenceNumber uint32, err error) {
	sequenceNumber = s.sendSequenceNumber
	s.sendSequenceNumber = (s.sendSequenceNumber + 1) & msgs.MaxSequenceNumber

	frame := msgs.NewCustomFrame(sequenceNumber, messages...)
	data, err := msgs.MarshalBytes(frame)
	if err != nil {
		return
	}

	var reliable []*msgs.EncapsulatedMessage
	for _, em := range messages {
		if em.Reliability.RequiresAck() {
			s.ackReceipts[sequenceNumber] = append(s.ackReceipts[sequenceNumber], em.Clone())
		}
		if em.Reliability.IsReliable() {
			reliable = append(reliable, em)
		}
	}

	if track && len(reliable) > 0 {
		s.recoveryQueue.Put(sequenceNumber, reliable)
	}

	s.sendRaw(data)
	return
}

// sendAcknowledge transmits an ACK or a NACK for the given records.
func (s *Session) sendAcknowledge(ack bool, records ...msgs.Record) {
	var am *msgs.AcknowledgeMessage
	if ack {
		am = msgs.NewAcknowledgeMessage(records...)
	} else {
		am = msgs.NewNotAcknowledgeMessage(records...)
	}

	data, err := msgs.MarshalBytes(am)
	if err != nil {
		s.log().WithError(err).Warn("Failed to marshal acknowledgement")
		return
	}
	s.sendRaw(data)
}

// sendRaw passes a datagram to the Transport. Send errors are treated as packet loss.
func (s *Session) sendRaw(data []byte) {
	now := s.clock.Now()
	s.resetCounters(now)

	s.lastPacketSendTime = now
	s.packetsSentThisSecond++

	if err := s.transport.SendTo(data, s.address); err != nil {
		s.log().WithError(err).Debug("Sending datagram failed")
	}
}

// resetCounters resets the per-second packet counters on one-second boundaries.
func (s *Session) resetCounters(now time.Time) {
	if now.Sub(s.lastSentResetTime) >= time.Second {
		s.packetsSentThisSecond = 0
		s.lastSentResetTime = now
	}
	if now.Sub(s.lastReceivedResetTime) >= time.Second {
		s.packetsReceivedThisSecond = 0
		s.lastReceivedResetTime = now
		s.floodReported = false
	}
}
