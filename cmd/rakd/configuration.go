// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/agent"
	"github.com/dtn7/raknet-go/pkg/node"
	"github.com/dtn7/raknet-go/pkg/raknet"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Node    nodeConf
	Logging logConf
	Agents  agentsConf
	Listen  []listenConf
	Peer    []peerConf
}

// nodeConf describes the Node-configuration block.
type nodeConf struct {
	Guid      int64
	Mtu       int
	RetryTime string `toml:"retry-time"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// agentsConf describes the ApplicationAgents-configuration block.
type agentsConf struct {
	Webserver string
	Rest      bool
	Websocket bool
	Ping      string
}

// listenConf describes a Listener.
type listenConf struct {
	Endpoint       string
	MaxConnections *int `toml:"max-connections"`
	Banned         []string
	DontFragment   bool `toml:"dont-fragment"`
}

// peerConf describes a permanently dialed server.
type peerConf struct {
	Endpoint     string
	MtuSizes     []int `toml:"mtu-sizes"`
	DontFragment bool  `toml:"dont-fragment"`
}

// parseConfig reads and validates the TOML configuration file.
func parseConfig(filename string) (conf tomlConfig, err error) {
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	err = conf.validate()
	return
}

// validate the whole configuration. All problems are reported at once.
func (conf tomlConfig) validate() (err error) {
	if conf.Node.Mtu != 0 && (conf.Node.Mtu < raknet.MinimumMtu || conf.Node.Mtu > raknet.MaximumMtu) {
		err = multierror.Append(err, fmt.Errorf("node.mtu %d is out of range", conf.Node.Mtu))
	}
	if conf.Node.RetryTime != "" {
		if _, durErr := time.ParseDuration(conf.Node.RetryTime); durErr != nil {
			err = multierror.Append(err, fmt.Errorf("node.retry-time: %v", durErr))
		}
	}

	if conf.Logging.Level != "" {
		if _, lvlErr := log.ParseLevel(conf.Logging.Level); lvlErr != nil {
			err = multierror.Append(err, fmt.Errorf("logging.level: %v", lvlErr))
		}
	}
	switch conf.Logging.Format {
	case "", "text", "json":
	default:
		err = multierror.Append(err, fmt.Errorf("unknown logging.format %q", conf.Logging.Format))
	}

	if (conf.Agents.Rest || conf.Agents.Websocket) && conf.Agents.Webserver == "" {
		err = multierror.Append(err, fmt.Errorf("agents.rest and agents.websocket require agents.webserver"))
	}
	if conf.Agents.Ping != "" {
		if _, epErr := agent.ParseEndpoint(conf.Agents.Ping); epErr != nil {
			err = multierror.Append(err, fmt.Errorf("agents.ping: %v", epErr))
		}
	}

	for i, listen := range conf.Listen {
		if _, _, addrErr := net.SplitHostPort(listen.Endpoint); addrErr != nil {
			err = multierror.Append(err, fmt.Errorf("listen %d: %v", i, addrErr))
		}
		for _, banned := range listen.Banned {
			if net.ParseIP(banned) == nil {
				err = multierror.Append(err, fmt.Errorf("listen %d: banned %q is no IP address", i, banned))
			}
		}
	}

	for i, peer := range conf.Peer {
		if _, _, addrErr := net.SplitHostPort(peer.Endpoint); addrErr != nil {
			err = multierror.Append(err, fmt.Errorf("peer %d: %v", i, addrErr))
		}
	}

	if len(conf.Listen) == 0 && len(conf.Peer) == 0 {
		err = multierror.Append(err, fmt.Errorf("neither listen nor peer blocks are configured"))
	}

	return
}

// setupLogging applies the Logging-configuration block to logrus.
func setupLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// listenerConfig for a listen block, inheriting the node block.
func (conf tomlConfig) listenerConfig(listen listenConf) raknet.ListenerConfig {
	lc := raknet.DefaultListenerConfig(listen.Endpoint)
	lc.Guid = conf.Node.Guid
	if conf.Node.Mtu != 0 {
		lc.Mtu = conf.Node.Mtu
	}
	if listen.MaxConnections != nil {
		lc.MaxConnections = *listen.MaxConnections
	}
	lc.Banned = listen.Banned
	lc.Socket.DontFragment = listen.DontFragment
	return lc
}

// clientConfig for a peer block, inheriting the node block.
func (conf tomlConfig) clientConfig(peer peerConf) raknet.ClientConfig {
	cc := raknet.DefaultClientConfig()
	cc.Guid = conf.Node.Guid
	if conf.Node.Mtu != 0 {
		cc.MaximumMtu = conf.Node.Mtu
	}
	if len(peer.MtuSizes) > 0 {
		cc.MtuSizes = peer.MtuSizes
	}
	cc.Socket.DontFragment = peer.DontFragment
	return cc
}

// retryTime between two dials of a peer.
func (conf tomlConfig) retryTime() time.Duration {
	if d, err := time.ParseDuration(conf.Node.RetryTime); err == nil && d > 0 {
		return d
	}
	return node.DefaultRetryTime
}
