// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	// MaxChannels is the amount of ordering and sequencing channels.
	MaxChannels = 32

	// MinimumMtu is the smallest MTU a session accepts.
	MinimumMtu = 400

	// MaximumMtu is the largest MTU tried by default.
	MaximumMtu = 1492
)

// Config for a Session. DefaultConfig returns sane defaults.
type Config struct {
	// Mtu is the negotiated maximum transfer unit; no CustomFrame will be larger.
	Mtu int

	// MaxSplitCount is the largest allowed amount of parts for one split message, both for sending and receiving.
	MaxSplitCount uint32

	// MaxSplitsPerQueue limits the amount of concurrently reassembled split messages.
	MaxSplitsPerQueue int

	// DedupCapacity is the amount of reliable message indices remembered for duplicate detection.
	DedupCapacity int

	// RecoverySendInterval between two resends of the oldest unacknowledged frame.
	RecoverySendInterval time.Duration

	// PingSendInterval between two CONNECTED_PINGs, if LatencyEnabled.
	PingSendInterval time.Duration

	// DetectionSendInterval of silence after which a keep-alive is sent.
	DetectionSendInterval time.Duration

	// SessionTimeout of silence after which the session is terminated.
	SessionTimeout time.Duration

	// MaxPacketsPerSecond is both the outbound frame budget and the inbound flood threshold.
	MaxPacketsPerSecond int

	// LatencyEnabled enables periodic CONNECTED_PINGs and latency statistics.
	LatencyEnabled bool
}

// DefaultConfig for a Session. The Mtu should be replaced by the negotiated one.
func DefaultConfig() Config {
	return Config{
		Mtu:                   MaximumMtu,
		MaxSplitCount:         128,
		MaxSplitsPerQueue:     4,
		DedupCapacity:         8192,
		RecoverySendInterval:  50 * time.Millisecond,
		PingSendInterval:      2500 * time.Millisecond,
		DetectionSendInterval: 5 * time.Second,
		SessionTimeout:        25 * time.Second,
		MaxPacketsPerSecond:   500,
		LatencyEnabled:        true,
	}
}

// Validate this Config. All problems are reported at once.
func (c Config) Validate() (err error) {
	if c.Mtu < MinimumMtu {
		err = multierror.Append(err, fmt.Errorf("MTU %d is below the minimum of %d", c.Mtu, MinimumMtu))
	}
	if c.MaxSplitCount == 0 {
		err = multierror.Append(err, fmt.Errorf("MaxSplitCount must be positive"))
	}
	if c.MaxSplitsPerQueue <= 0 {
		err = multierror.Append(err, fmt.Errorf("MaxSplitsPerQueue must be positive"))
	}
	if c.DedupCapacity <= 0 {
		err = multierror.Append(err, fmt.Errorf("DedupCapacity must be positive"))
	}
	if c.MaxPacketsPerSecond <= 0 {
		err = multierror.Append(err, fmt.Errorf("MaxPacketsPerSecond must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"RecoverySendInterval":  c.RecoverySendInterval,
		"PingSendInterval":      c.PingSendInterval,
		"DetectionSendInterval": c.DetectionSendInterval,
		"SessionTimeout":        c.SessionTimeout,
	} {
		if d <= 0 {
			err = multierror.Append(err, fmt.Errorf("%s must be positive", name))
		}
	}
	return
}
