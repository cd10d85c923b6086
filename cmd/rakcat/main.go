// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// rakcat exchanges lines of text with RakNet peers, either directly or through a rakd's WebSocket agent.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// printUsage of rakcat and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s connect|listen|agent|peers:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s connect address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Connects to the RakNet server at address. Each line of stdin is sent as a\n")
	_, _ = fmt.Fprintf(os.Stderr, "  reliable ordered message, received messages are written to stdout.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s listen address\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Listens as a RakNet server on address. Each line of stdin is sent to all\n")
	_, _ = fmt.Fprintf(os.Stderr, "  connected peers, received messages are written to stdout.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s agent websocket peer\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Registers itself for peer on a rakd's websocket, e.g., ws://localhost:8080/ws,\n")
	_, _ = fmt.Fprintf(os.Stderr, "  and exchanges lines with this peer like connect.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s peers websocket\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Lists the peers connected to a rakd.\n\n")

	os.Exit(1)
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args := os.Args[2:]; os.Args[1] {
	case "connect":
		connectServer(ctx, args)
	case "listen":
		listenServer(ctx, args)
	case "agent":
		agentExchange(ctx, args)
	case "peers":
		agentPeers(args)
	default:
		printUsage()
	}
}

// readLines from a Reader into the returned channel, which is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return lines
}

// framePayload prefixes a line with the first application message id.
func framePayload(line string) []byte {
	return append([]byte{raknet.UserMessageId}, line...)
}

// unframePayload strips a leading application message id.
func unframePayload(payload []byte) string {
	if len(payload) > 0 && payload[0] >= raknet.UserMessageId {
		return string(payload[1:])
	}
	return string(payload)
}
