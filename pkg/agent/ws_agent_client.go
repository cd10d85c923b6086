// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

// endpointOwner decides about a client's Endpoint registration.
type endpointOwner interface {
	claim(client *webAgentClient, endpoint Endpoint) error
}

type webAgentClient struct {
	sync.Mutex

	conn     *websocket.Conn
	owner    endpointOwner
	endpoint Endpoint
	receiver chan Message
	sender   chan Message

	shutdownOnce sync.Once
}

func newWebAgentClient(conn *websocket.Conn, owner endpointOwner) *webAgentClient {
	return &webAgentClient{
		conn:     conn,
		owner:    owner,
		receiver: make(chan Message),
		sender:   make(chan Message),
	}
}

func (client *webAgentClient) log() *log.Entry {
	return log.WithField("web agent client", client.conn.RemoteAddr().String())
}

func (client *webAgentClient) start() {
	go client.handleReceiver()
	client.handleConn()
}

func (client *webAgentClient) shutdown() {
	client.shutdownOnce.Do(func() {
		client.log().Debug("Reached shutdown")

		close(client.sender)
		_ = client.conn.Close()
	})
}

func (client *webAgentClient) handleReceiver() {
	defer func() {
		client.shutdown()

		// Drain until unregistered, otherwise the routing MuxAgent would block.
		for range client.receiver {
		}
	}()

	for msg := range client.receiver {
		var wam webAgentMessage

		switch msg := msg.(type) {
		case ShutdownMessage:
			client.log().Debug("Received Shutdown")
			return

		case PayloadMessage:
			wam = newPayloadMessage(msg)

		case PeerMessage:
			wam = newPeerMessage(msg)

		case SyscallResponseMessage:
			wam = newSyscallResponseMessage(msg.Request, msg.Response)

		default:
			client.log().WithField("message", msg).Info("Received unknown / unsupported message")
			continue
		}

		if err := client.writeMessage(wam); err != nil {
			client.log().WithError(err).WithField("message", msg).Warn("Sending message to client errored")
			return
		}
		client.log().WithField("message", msg).Debug("Sent message to client")
	}
}

func (client *webAgentClient) handleConn() {
	defer client.shutdown()

	logger := client.log()

	for {
		messageType, reader, err := client.conn.NextReader()
		if errors.Is(err, net.ErrClosed) {
			logger.WithError(err).Debug("Reader errored due to closed network connection")
			return
		} else if err != nil {
			logger.WithError(err).Warn("Opening next Websocket Reader errored")
			return
		} else if messageType != websocket.BinaryMessage {
			logger.WithField("message type", messageType).Warn("Websocket Reader's type is not binary")
			return
		}

		msg, err := unmarshalCbor(reader)
		if err != nil {
			logger.WithError(err).Warn("Unmarshal CBOR errored")
			return
		}

		switch msg := msg.(type) {
		case *wamRegister:
			err = client.handleIncomingRegister(msg)

		case *wamPayload:
			err = client.handleIncomingPayload(msg)

		case *wamSyscallRequest:
			logger.WithField("syscall", msg.request).Info("Received requested syscall")
			client.sender <- SyscallRequestMessage{
				Sender:  client.Endpoint(),
				Request: msg.request,
			}

		default:
			logger.WithField("message", msg).Info("Received unknown / unsupported message")
		}

		if err != nil {
			logger.WithField("message", msg).WithError(err).Warn("Handling message errored")
			return
		}
	}
}

// handleIncomingRegister parses the Endpoint and lets the owner claim it, which will acknowledge the registration.
func (client *webAgentClient) handleIncomingRegister(m *wamRegister) error {
	logger := client.log().WithField("message", m)

	if client.Endpoint() != "" {
		msg := "register errored, an endpoint is already present"
		logger.Warn(msg)
		return client.acknowledgeIncoming(errors.New(msg))
	}

	endpoint, err := ParseEndpoint(m.endpoint)
	if err != nil {
		logger.WithError(err).Warn("Parsing endpoint errored")
		return client.acknowledgeIncoming(err)
	}

	if err := client.owner.claim(client, endpoint); err != nil {
		logger.WithError(err).WithField("endpoint", endpoint).Warn("Claiming endpoint errored")
		return err
	}

	logger.WithField("endpoint", endpoint).Debug("Registered endpoint")
	return nil
}

func (client *webAgentClient) setEndpoint(endpoint Endpoint) {
	client.Lock()
	defer client.Unlock()

	client.endpoint = endpoint
}

// handleIncomingPayload forwards a client's payload, which must be addressed to a peer of its registered endpoint.
func (client *webAgentClient) handleIncomingPayload(m *wamPayload) error {
	endpoint := client.Endpoint()
	switch {
	case endpoint == "":
		return fmt.Errorf("sending a payload requires a registered endpoint")
	case m.msg.Peer == AnyPeer || !endpoint.Matches(m.msg.Peer):
		return fmt.Errorf("endpoint %v cannot send to %v", endpoint, m.msg.Peer)
	}

	client.log().WithField("message", m.msg).Info("Received payload")
	client.sender <- m.msg
	return nil
}

func (client *webAgentClient) acknowledgeIncoming(err error) error {
	if writeErr := client.writeMessage(newStatusMessage(err)); writeErr != nil {
		return writeErr
	}
	return err
}

func (client *webAgentClient) writeMessage(msg webAgentMessage) error {
	client.Lock()
	defer client.Unlock()

	wc, wcErr := client.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

// Endpoint is the registered Endpoint, or empty.
func (client *webAgentClient) Endpoint() Endpoint {
	client.Lock()
	defer client.Unlock()

	return client.endpoint
}

func (client *webAgentClient) Endpoints() []Endpoint {
	if endpoint := client.Endpoint(); endpoint != "" {
		return []Endpoint{endpoint}
	}
	return nil
}

func (client *webAgentClient) MessageReceiver() chan Message {
	return client.receiver
}

func (client *webAgentClient) MessageSender() chan Message {
	return client.sender
}
