// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// Update drives the time-based behaviour of the Session: timeouts, keep-alives, pings, sending queued messages and
// resending unacknowledged frames. It should be called every 10 to 50 milliseconds.
func (s *Session) Update() {
	s.locked(s.update)
}

func (s *Session) update() {
	if s.terminated {
		return
	}

	now := s.clock.Now()
	silence := now.Sub(s.lastPacketReceiveTime)

	if silence >= s.config.SessionTimeout {
		s.terminate(ErrTimeout)
		return
	}

	if s.state == Connected {
		if silence >= s.config.DetectionSendInterval && now.Sub(s.lastKeepAliveSendTime) >= s.config.DetectionSendInterval {
			if _, err := s.sendSignal(msgs.DETECT_LOST_CONNECTIONS, msgs.Unreliable); err != nil {
				s.log().WithError(err).Warn("Failed to queue keep-alive")
			}
			s.lastKeepAliveSendTime = now
		}

		if s.config.LatencyEnabled && now.Sub(s.lastPingSendTime) >= s.config.PingSendInterval {
			s.sendPing()
			s.lastPingSendTime = now
		}
	}

	s.flushSendQueue(now)
	if s.terminated {
		return
	}

	if s.recoveryQueue.Len() > 0 && now.Sub(s.lastRecoverySendTime) >= s.config.RecoverySendInterval {
		oldSequenceNumber, messages, _ := s.recoveryQueue.Oldest()

		sequenceNumber, err := s.sendFrame(messages, false)
		if err != nil {
			s.terminate(err)
			return
		}
		s.recoveryQueue.Rename(oldSequenceNumber, sequenceNumber)
		s.dropReliableReceipts(oldSequenceNumber)
		s.lastRecoverySendTime = now

		s.log().WithFields(log.Fields{
			"old sequence number": oldSequenceNumber,
			"new sequence number": sequenceNumber,
		}).Debug("Resent unacknowledged frame")
	}

	s.resetCounters(now)
}

// dropReliableReceipts untracks the reliable receipt messages of a resent frame, now tracked under its new number.
func (s *Session) dropReliableReceipts(sequenceNumber uint32) {
	receipts := s.ackReceipts[sequenceNumber]
	kept := receipts[:0]
	for _, em := range receipts {
		if !em.Reliability.IsReliable() {
			kept = append(kept, em)
		}
	}

	if len(kept) == 0 {
		delete(s.ackReceipts, sequenceNumber)
	} else {
		s.ackReceipts[sequenceNumber] = kept
	}
}
