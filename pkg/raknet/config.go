// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
)

const (
	// DefaultPort of RakNet servers.
	DefaultPort = 19132

	defaultUpdateInterval = 10 * time.Millisecond
	defaultStatusBuffer   = 256
)

// DefaultMtuSizes are tried by a Client, larger ones first.
var DefaultMtuSizes = []int{session.MaximumMtu, 1200, 576, session.MinimumMtu}

// SocketConfig sets options of the UDP socket.
type SocketConfig struct {
	// DontFragment sets the IP don't fragment bit, which makes MTU probing reliable. Only supported on Linux.
	DontFragment bool

	// ReadBuffer and WriteBuffer set the socket's buffer sizes in bytes, if positive.
	ReadBuffer  int
	WriteBuffer int
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Address to listen on, e.g., ":19132".
	Address string

	// Guid of this server; a random one is created if zero.
	Guid int64

	// Mtu is the largest MTU accepted from clients.
	Mtu int

	// MaxConnections limits the amount of clients. A negative value disables the limit.
	MaxConnections int

	// Banned IP addresses are refused during the handshake.
	Banned []string

	// FloodBlock is the time an address flooding the listener is blocked for.
	FloodBlock time.Duration

	Session        SessionConfig
	Socket         SocketConfig
	UpdateInterval time.Duration
	StatusBuffer   int

	// Clock defaults to the real clock if nil.
	Clock clockwork.Clock
}

// DefaultListenerConfig for a Listener on the given address.
func DefaultListenerConfig(address string) ListenerConfig {
	return ListenerConfig{
		Address:        address,
		Mtu:            session.MaximumMtu,
		MaxConnections: -1,
		FloodBlock:     5 * time.Minute,
		Session:        session.DefaultConfig(),
		Socket:         SocketConfig{DontFragment: true},
		UpdateInterval: defaultUpdateInterval,
		StatusBuffer:   defaultStatusBuffer,
	}
}

// Validate this ListenerConfig. All problems are reported at once.
func (conf ListenerConfig) Validate() (err error) {
	if conf.Mtu < session.MinimumMtu {
		err = multierror.Append(err, fmt.Errorf("MTU %d is below the minimum of %d", conf.Mtu, session.MinimumMtu))
	}
	for _, banned := range conf.Banned {
		if net.ParseIP(banned) == nil {
			err = multierror.Append(err, fmt.Errorf("banned address %q is no IP address", banned))
		}
	}
	if conf.UpdateInterval <= 0 {
		err = multierror.Append(err, fmt.Errorf("update interval must be positive"))
	}
	if conf.FloodBlock < 0 {
		err = multierror.Append(err, fmt.Errorf("flood block must not be negative"))
	}

	sessionConf := conf.Session
	sessionConf.Mtu = conf.Mtu
	if sessionErr := sessionConf.Validate(); sessionErr != nil {
		err = multierror.Append(err, sessionErr)
	}
	return
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Address to bind locally; an ephemeral port is used if empty.
	Address string

	// Guid of this client; a random one is created if zero.
	Guid int64

	// MtuSizes are tried in this order.
	MtuSizes []int

	// MaximumMtu caps the negotiated MTU.
	MaximumMtu int

	// RetriesPerMtu and Retries are the amount of first and second handshake requests.
	RetriesPerMtu int
	Retries       int

	// RetryDelay between two handshake requests.
	RetryDelay time.Duration

	// LoginTimeout limits the login after the handshake.
	LoginTimeout time.Duration

	Session        SessionConfig
	Socket         SocketConfig
	UpdateInterval time.Duration
	StatusBuffer   int

	// Clock defaults to the real clock if nil.
	Clock clockwork.Clock
}

// DefaultClientConfig returns the default ClientConfig.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MtuSizes:       append([]int(nil), DefaultMtuSizes...),
		MaximumMtu:     session.MaximumMtu,
		RetriesPerMtu:  4,
		Retries:        4,
		RetryDelay:     500 * time.Millisecond,
		LoginTimeout:   10 * time.Second,
		Session:        session.DefaultConfig(),
		Socket:         SocketConfig{DontFragment: true},
		UpdateInterval: defaultUpdateInterval,
		StatusBuffer:   defaultStatusBuffer,
	}
}

// Validate this ClientConfig. All problems are reported at once.
func (conf ClientConfig) Validate() (err error) {
	if len(conf.MtuSizes) == 0 {
		err = multierror.Append(err, fmt.Errorf("no MTU sizes"))
	}
	for _, mtu := range conf.MtuSizes {
		if mtu < session.MinimumMtu {
			err = multierror.Append(err, fmt.Errorf("MTU size %d is below the minimum of %d", mtu, session.MinimumMtu))
		}
	}
	if conf.MaximumMtu < session.MinimumMtu {
		err = multierror.Append(err, fmt.Errorf("maximum MTU %d is below the minimum of %d", conf.MaximumMtu, session.MinimumMtu))
	}
	if conf.RetriesPerMtu <= 0 || conf.Retries <= 0 {
		err = multierror.Append(err, fmt.Errorf("retries must be positive"))
	}
	if conf.RetryDelay <= 0 || conf.LoginTimeout <= 0 || conf.UpdateInterval <= 0 {
		err = multierror.Append(err, fmt.Errorf("retry delay, login timeout and update interval must be positive"))
	}

	sessionConf := conf.Session
	sessionConf.Mtu = conf.MaximumMtu
	if sessionErr := sessionConf.Validate(); sessionErr != nil {
		err = multierror.Append(err, sessionErr)
	}
	return
}
