// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"time"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// maxPendingPings is the amount of unanswered ping timestamps which are remembered.
const maxPendingPings = 8

// Latency statistics, calculated from CONNECTED_PING and CONNECTED_PONG round trips.
type Latency struct {
	Last    time.Duration
	Lowest  time.Duration
	Highest time.Duration
	Average time.Duration

	// Samples is the amount of measured round trips.
	Samples int
}

func (s *Session) sendPing() {
	ping := msgs.ConnectedPing{Timestamp: s.timestamp()}
	if _, err := s.sendPacket(msgs.Unreliable, 0, &ping); err != nil {
		s.log().WithError(err).Warn("Failed to queue ping")
		return
	}

	s.pingTimestamps = append(s.pingTimestamps, ping.Timestamp)
	if len(s.pingTimestamps) > maxPendingPings {
		s.pingTimestamps = s.pingTimestamps[len(s.pingTimestamps)-maxPendingPings:]
	}
}

// handlePong updates the latency statistics for a pong answering one of our pings.
func (s *Session) handlePong(pong msgs.ConnectedPong) {
	for i, ts := range s.pingTimestamps {
		if ts != pong.PingTimestamp {
			continue
		}

		s.pingTimestamps = s.pingTimestamps[i+1:]
		s.latency.add(time.Duration(s.timestamp()-ts) * time.Millisecond)
		return
	}

	s.log().WithField("pong", pong).Debug("Dropping unexpected pong")
}

func (l *Latency) add(rtt time.Duration) {
	if rtt < 0 {
		rtt = 0
	}

	if l.Samples == 0 || rtt < l.Lowest {
		l.Lowest = rtt
	}
	if rtt > l.Highest {
		l.Highest = rtt
	}

	l.Average = (l.Average*time.Duration(l.Samples) + rtt) / time.Duration(l.Samples+1)
	l.Last = rtt
	l.Samples++
}
