// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// restMailboxSize limits the amount of unfetched payloads per client. The oldest ones are dropped first.
const restMailboxSize = 1024

// RestAgent is a RESTful ApplicationAgent for simple payload exchange.
type RestAgent struct {
	router *mux.Router

	receiver chan Message
	sender   chan Message

	// clients maps UUIDs to Endpoints
	clients sync.Map // uuid[string] -> Endpoint

	mailbox      map[string][]RestPayload
	mailboxMutex sync.Mutex

	closed      bool
	closedMutex sync.RWMutex
}

// NewRestAgent creates a new RESTful ApplicationAgent, registering its handlers on the router.
func NewRestAgent(router *mux.Router) (ra *RestAgent) {
	ra = &RestAgent{
		router:   router,
		receiver: make(chan Message),
		sender:   make(chan Message),
		mailbox:  make(map[string][]RestPayload),
	}

	ra.router.HandleFunc("/register", ra.handleRegister).Methods(http.MethodPost)
	ra.router.HandleFunc("/unregister", ra.handleUnregister).Methods(http.MethodPost)
	ra.router.HandleFunc("/fetch", ra.handleFetch).Methods(http.MethodPost)
	ra.router.HandleFunc("/send", ra.handleSend).Methods(http.MethodPost)

	go ra.handler()

	return ra
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint, e.g., /rest.
func (ra *RestAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ra.router.ServeHTTP(w, r)
}

func (ra *RestAgent) handler() {
	defer func() {
		ra.closedMutex.Lock()
		ra.closed = true
		close(ra.sender)
		ra.closedMutex.Unlock()
	}()

	for msg := range ra.receiver {
		switch msg := msg.(type) {
		case PayloadMessage:
			ra.deliver(msg)

		case ShutdownMessage:
			log.Info("RestAgent received a shutdown")
			return

		default:
			log.WithField("message", msg).Debug("RestAgent ignores message")
		}
	}
}

// deliver an incoming payload to each matching client's mailbox.
func (ra *RestAgent) deliver(msg PayloadMessage) {
	payload := RestPayload{
		Peer:        string(msg.Peer),
		Reliability: msg.Reliability.String(),
		Channel:     msg.Channel,
		Payload:     msg.Payload,
	}

	ra.clients.Range(func(k, v interface{}) bool {
		if !v.(Endpoint).Matches(msg.Peer) {
			return true
		}

		id := k.(string)

		ra.mailboxMutex.Lock()
		box := append(ra.mailbox[id], payload)
		if len(box) > restMailboxSize {
			log.WithField("uuid", id).Warn("REST client's mailbox is full, dropping the oldest payload")
			box = box[len(box)-restMailboxSize:]
		}
		ra.mailbox[id] = box
		ra.mailboxMutex.Unlock()
		return true
	})
}

func writeJson(w http.ResponseWriter, v interface{}, name string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warnf("Failed to write REST %s response", name)
	}
}

// handleRegister processes /register POST requests.
func (ra *RestAgent) handleRegister(w http.ResponseWriter, r *http.Request) {
	var (
		registerRequest  RestRegisterRequest
		registerResponse RestRegisterResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&registerRequest); jsonErr != nil {
		registerResponse.Error = jsonErr.Error()
	} else if endpoint, endpointErr := ParseEndpoint(registerRequest.Endpoint); endpointErr != nil {
		registerResponse.Error = endpointErr.Error()
	} else {
		id := uuid.NewString()
		ra.clients.Store(id, endpoint)
		registerResponse.UUID = id
	}

	log.WithFields(log.Fields{
		"request":  registerRequest,
		"response": registerResponse,
	}).Info("Processing REST registration")

	writeJson(w, registerResponse, "registration")
}

// handleUnregister processes /unregister POST requests.
func (ra *RestAgent) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var (
		unregisterRequest  RestUnregisterRequest
		unregisterResponse RestUnregisterResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&unregisterRequest); jsonErr != nil {
		log.WithError(jsonErr).Warn("Failed to parse REST unregistration request")
		unregisterResponse.Error = jsonErr.Error()
	} else {
		log.WithField("uuid", unregisterRequest.UUID).Info("Unregister REST client")
		ra.clients.Delete(unregisterRequest.UUID)

		ra.mailboxMutex.Lock()
		delete(ra.mailbox, unregisterRequest.UUID)
		ra.mailboxMutex.Unlock()
	}

	writeJson(w, unregisterResponse, "unregistration")
}

// handleFetch processes /fetch POST requests, emptying the client's mailbox.
func (ra *RestAgent) handleFetch(w http.ResponseWriter, r *http.Request) {
	var (
		fetchRequest  RestFetchRequest
		fetchResponse RestFetchResponse
	)

	if jsonErr := json.NewDecoder(r.Body).Decode(&fetchRequest); jsonErr != nil {
		fetchResponse.Error = jsonErr.Error()
	} else if _, ok := ra.clients.Load(fetchRequest.UUID); !ok {
		fetchResponse.Error = "unknown UUID"
	} else {
		ra.mailboxMutex.Lock()
		fetchResponse.Payloads = ra.mailbox[fetchRequest.UUID]
		delete(ra.mailbox, fetchRequest.UUID)
		ra.mailboxMutex.Unlock()
	}

	log.WithFields(log.Fields{
		"uuid":     fetchRequest.UUID,
		"payloads": len(fetchResponse.Payloads),
		"error":    fetchResponse.Error,
	}).Debug("Processing REST fetch")

	writeJson(w, fetchResponse, "fetch")
}

// handleSend processes /send POST requests, passing a payload towards a peer.
func (ra *RestAgent) handleSend(w http.ResponseWriter, r *http.Request) {
	var sendResponse RestSendResponse

	if msg, err := ra.parseSend(r); err != nil {
		sendResponse.Error = err.Error()
	} else if err := ra.send(msg); err != nil {
		sendResponse.Error = err.Error()
	} else {
		log.WithField("message", msg).Info("REST client sent a payload")
	}

	writeJson(w, sendResponse, "send")
}

func (ra *RestAgent) parseSend(r *http.Request) (msg PayloadMessage, err error) {
	var sendRequest RestSendRequest
	if err = json.NewDecoder(r.Body).Decode(&sendRequest); err != nil {
		return
	}

	v, ok := ra.clients.Load(sendRequest.UUID)
	if !ok {
		err = fmt.Errorf("unknown UUID")
		return
	}

	if msg.Peer, err = ParseEndpoint(sendRequest.Peer); err != nil {
		return
	} else if msg.Peer == AnyPeer || !v.(Endpoint).Matches(msg.Peer) {
		err = fmt.Errorf("endpoint %v cannot send to %v", v, msg.Peer)
		return
	}

	if msg.Reliability, err = raknet.ParseReliability(sendRequest.Reliability); err != nil {
		return
	}
	if sendRequest.Channel >= raknet.MaxChannels {
		err = fmt.Errorf("invalid channel %d", sendRequest.Channel)
		return
	}

	msg.Channel = sendRequest.Channel
	msg.Payload = sendRequest.Payload
	return
}

func (ra *RestAgent) send(msg PayloadMessage) error {
	ra.closedMutex.RLock()
	defer ra.closedMutex.RUnlock()

	if ra.closed {
		return fmt.Errorf("RestAgent was shut down")
	}

	ra.sender <- msg
	return nil
}

// Endpoints of all registered clients.
func (ra *RestAgent) Endpoints() (endpoints []Endpoint) {
	ra.clients.Range(func(_, v interface{}) bool {
		endpoints = append(endpoints, v.(Endpoint))
		return true
	})
	return
}

func (ra *RestAgent) MessageReceiver() chan Message {
	return ra.receiver
}

func (ra *RestAgent) MessageSender() chan Message {
	return ra.sender
}
