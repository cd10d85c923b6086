// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/agent"
	"github.com/dtn7/raknet-go/pkg/node"
	"github.com/dtn7/raknet-go/pkg/raknet"
)

// agentExchange for the "agent" CLI option.
func agentExchange(ctx context.Context, args []string) {
	if len(args) != 2 {
		printUsage()
	}

	peer, err := agent.ParseEndpoint(args[1])
	if err != nil {
		log.WithError(err).Fatal("Parsing peer errored")
	}

	wac, err := agent.NewWebSocketAgentConnector(args[0], string(peer))
	if err != nil {
		log.WithError(err).Fatal("Starting WebSocket agent connector errored")
	}
	defer wac.Close()

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			if peer == agent.AnyPeer {
				log.Warn("Cannot send to any peer, only receiving")
				continue
			}

			msg := agent.PayloadMessage{
				Peer:        peer,
				Reliability: raknet.ReliableOrdered,
				Payload:     framePayload(line),
			}
			if err := wac.WritePayload(msg); err != nil {
				log.WithError(err).Fatal("Sending errored")
			}

		case msg, ok := <-wac.Payloads():
			if !ok {
				log.Info("Connection was closed")
				return
			}
			fmt.Printf("%v: %s\n", msg.Peer, unframePayload(msg.Payload))

		case pm, ok := <-wac.Peers():
			if !ok {
				return
			}
			log.WithFields(log.Fields{
				"peer":      pm.Peer,
				"connected": pm.Connected,
			}).Info("Peer changed")
		}
	}
}

// agentPeers for the "peers" CLI option.
func agentPeers(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	wac, err := agent.NewWebSocketAgentConnector(args[0], string(agent.AnyPeer))
	if err != nil {
		log.WithError(err).Fatal("Starting WebSocket agent connector errored")
	}
	defer wac.Close()

	response, err := wac.Syscall("peers", 5*time.Second)
	if err != nil {
		log.WithError(err).Fatal("Syscall errored")
	}

	var peers []node.PeerInfo
	if err := json.Unmarshal(response, &peers); err != nil {
		log.WithError(err).Fatal("Parsing peers errored")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ADDRESS\tGUID\tMTU\tLATENCY")
	for _, p := range peers {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%v\n", p.Address, p.Guid, p.Mtu, p.Latency)
	}
	_ = tw.Flush()
}
