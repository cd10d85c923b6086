// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// connectServer for the "connect" CLI option.
func connectServer(ctx context.Context, args []string) {
	if len(args) != 1 {
		printUsage()
	}

	c, err := raknet.NewClient(raknet.DefaultClientConfig())
	if err != nil {
		log.WithError(err).Fatal("Creating client errored")
	}
	defer c.Close()

	p, err := c.Connect(ctx, args[0])
	if err != nil {
		log.WithError(err).Fatal("Connecting errored")
	}
	log.WithFields(log.Fields{
		"peer": p,
		"mtu":  p.Mtu(),
	}).Info("Connected")

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := p.Send(raknet.ReliableOrdered, 0, framePayload(line)); err != nil {
				log.WithError(err).Fatal("Sending errored")
			}

		case e, ok := <-c.Status():
			if !ok {
				return
			}

			switch e.Type {
			case raknet.ReceivedMessage:
				fmt.Println(unframePayload(e.Message.(raknet.ReceivedPayload).Payload))
			case raknet.PeerDisconnected:
				log.WithField("reason", e.Message).Info("Disconnected")
				return
			}
		}
	}
}

// listenServer for the "listen" CLI option.
func listenServer(ctx context.Context, args []string) {
	if len(args) != 1 {
		printUsage()
	}

	l, err := raknet.NewListener(raknet.DefaultListenerConfig(args[0]))
	if err != nil {
		log.WithError(err).Fatal("Creating listener errored")
	}
	if err := l.Start(); err != nil {
		log.WithError(err).Fatal("Starting listener errored")
	}
	defer l.Close()

	log.WithField("address", l.Addr()).Info("Listening")

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			for _, p := range l.Peers() {
				if err := p.Send(raknet.ReliableOrdered, 0, framePayload(line)); err != nil {
					log.WithField("peer", p).WithError(err).Warn("Sending errored")
				}
			}

		case e := <-l.Status():
			switch e.Type {
			case raknet.PeerConnected, raknet.PeerDisconnected:
				log.WithFields(log.Fields{
					"peer":   e.Peer,
					"reason": e.Message,
				}).Info(e.Type)
			case raknet.ReceivedMessage:
				fmt.Printf("%v: %s\n", e.Peer.Address(), unframePayload(e.Message.(raknet.ReceivedPayload).Payload))
			}
		}
	}
}
