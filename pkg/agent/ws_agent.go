// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
)

// WebSocketAgent is a WebSocket based ApplicationAgent. It can be used together with the WebSocketAgentConnector to
// exchange Messages.
//
// Each client registers one Endpoint. A peer's address might only be owned by one client at a time, while the AnyPeer
// wildcard is shared. After its registration, a client is informed about all already connected peers it matches.
type WebSocketAgent struct {
	receiver  chan Message
	clientMux *MuxAgent

	// owners of registered peer Endpoints, guarded by clientMux's lock.
	owners map[Endpoint]*webAgentClient

	upgrader websocket.Upgrader
}

// NewWebSocketAgent will be started with its handler. The ServeHTTP function must be bound to the HTTP server.
func NewWebSocketAgent() (wa *WebSocketAgent) {
	wa = &WebSocketAgent{
		receiver:  make(chan Message),
		clientMux: NewMuxAgent(),
		owners:    make(map[Endpoint]*webAgentClient),

		upgrader: websocket.Upgrader{},
	}

	go wa.handler()

	return
}

func (w *WebSocketAgent) handler() {
	for msg := range w.receiver {
		w.clientMux.MessageReceiver() <- msg

		if _, isShutdown := msg.(ShutdownMessage); isShutdown {
			log.Info("WebSocketAgent received a shutdown")
			return
		}
	}
}

// ServeHTTP must be bound to a HTTP endpoint, e.g., to /ws by a http.ServeMux.
func (w *WebSocketAgent) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, connErr := w.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		log.WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := newWebAgentClient(conn, w)
	w.clientMux.Register(client)

	client.start()
	w.release(client)
}

// claim an Endpoint for a client. On success, the client is acknowledged and informed about its connected peers
// before any other Message might be routed to it.
func (w *WebSocketAgent) claim(client *webAgentClient, endpoint Endpoint) error {
	return w.clientMux.withPeers(func(peers []Endpoint) error {
		if owner, ok := w.owners[endpoint]; ok && owner != client {
			err := fmt.Errorf("endpoint %v is already registered by another client", endpoint)
			return client.acknowledgeIncoming(err)
		}

		if endpoint != AnyPeer {
			w.owners[endpoint] = client
		}
		client.setEndpoint(endpoint)

		if err := client.acknowledgeIncoming(nil); err != nil {
			return err
		}
		for _, peer := range peers {
			if !endpoint.Matches(peer) {
				continue
			}
			if err := client.writeMessage(newPeerMessage(PeerMessage{Peer: peer, Connected: true})); err != nil {
				return err
			}
		}
		return nil
	})
}

// release all Endpoints owned by a disconnected client.
func (w *WebSocketAgent) release(client *webAgentClient) {
	_ = w.clientMux.withPeers(func(_ []Endpoint) error {
		for endpoint, owner := range w.owners {
			if owner == client {
				delete(w.owners, endpoint)
			}
		}
		return nil
	})
}

// Peers which are currently connected.
func (w *WebSocketAgent) Peers() []Endpoint {
	return w.clientMux.Peers()
}

// Endpoints of all currently connected clients.
func (w *WebSocketAgent) Endpoints() []Endpoint {
	return w.clientMux.Endpoints()
}

// MessageReceiver is a channel on which the ApplicationAgent must listen for incoming Messages.
func (w *WebSocketAgent) MessageReceiver() chan Message {
	return w.receiver
}

// MessageSender is a channel to which the ApplicationAgent can send outgoing Messages.
func (w *WebSocketAgent) MessageSender() chan Message {
	return w.clientMux.MessageSender()
}
