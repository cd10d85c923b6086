// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketAgentConnector is the client side version of the WebSocketAgent.
type WebSocketAgentConnector struct {
	conn *websocket.Conn

	msgOutChan chan webAgentMessage
	msgOutErr  chan error

	msgInPayloadChan chan PayloadMessage
	msgInPeerChan    chan PeerMessage
	msgInSyscallChan chan []byte

	closeSyn chan struct{}
	closeAck chan struct{}
}

// NewWebSocketAgentConnector creates a new WebSocketAgentConnector connection to a WebSocketAgent.
func NewWebSocketAgentConnector(apiUrl, endpoint string) (wac *WebSocketAgentConnector, err error) {
	var conn *websocket.Conn
	if conn, _, err = websocket.DefaultDialer.Dial(apiUrl, nil); err != nil {
		return
	}

	wac = &WebSocketAgentConnector{
		conn: conn,

		msgOutChan: make(chan webAgentMessage),
		msgOutErr:  make(chan error),

		msgInPayloadChan: make(chan PayloadMessage, 64),
		msgInPeerChan:    make(chan PeerMessage, 64),
		msgInSyscallChan: make(chan []byte),

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	if err = wac.registerEndpoint(endpoint); err != nil {
		_ = conn.Close()
		wac = nil
		return
	}

	go wac.handler()
	go wac.handleReader()

	return
}

func (wac *WebSocketAgentConnector) writeMessage(msg webAgentMessage) error {
	wc, wcErr := wac.conn.NextWriter(websocket.BinaryMessage)
	if wcErr != nil {
		return wcErr
	}

	if cborErr := marshalCbor(msg, wc); cborErr != nil {
		return cborErr
	}

	return wc.Close()
}

func (wac *WebSocketAgentConnector) readMessage() (msg webAgentMessage, err error) {
	if mt, r, rErr := wac.conn.NextReader(); rErr != nil {
		err = rErr
		return
	} else if mt != websocket.BinaryMessage {
		err = fmt.Errorf("expected binary message, got %d", mt)
		return
	} else {
		msg, err = unmarshalCbor(r)
		return
	}
}

func (wac *WebSocketAgentConnector) registerEndpoint(endpoint string) error {
	if err := wac.writeMessage(newRegisterMessage(endpoint)); err != nil {
		return err
	}

	if msg, err := wac.readMessage(); err != nil {
		return err
	} else if status, ok := msg.(*wamStatus); !ok {
		return fmt.Errorf("expected wamStatus, got %T", msg)
	} else if status.errorMsg != "" {
		return fmt.Errorf("received non-empty error message: %s", status.errorMsg)
	} else {
		return nil
	}
}

func (wac *WebSocketAgentConnector) handleReader() {
	defer close(wac.msgInPayloadChan)
	defer close(wac.msgInPeerChan)
	defer close(wac.msgInSyscallChan)

	for {
		msg, err := wac.readMessage()
		if err != nil {
			return
		}

		switch msg := msg.(type) {
		case *wamPayload:
			wac.msgInPayloadChan <- msg.msg

		case *wamPeer:
			select {
			case wac.msgInPeerChan <- PeerMessage{Peer: Endpoint(msg.peer), Connected: msg.connected}:
			default:
			}

		case *wamSyscallResponse:
			wac.msgInSyscallChan <- msg.response

		case *wamStatus:
			if msg.errorMsg != "" {
				// The server closes the connection after a failure.
				return
			}
		}
	}
}

func (wac *WebSocketAgentConnector) handler() {
	defer func() {
		close(wac.closeAck)

		close(wac.msgOutChan)
		close(wac.msgOutErr)

		_ = wac.conn.Close()
	}()

	for {
		select {
		case <-wac.closeSyn:
			return

		case msg := <-wac.msgOutChan:
			wac.msgOutErr <- wac.writeMessage(msg)
		}
	}
}

// WritePayload sends a PayloadMessage to a server.
func (wac *WebSocketAgentConnector) WritePayload(msg PayloadMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	wac.msgOutChan <- newPayloadMessage(msg)
	return <-wac.msgOutErr
}

// ReadPayload returns the next incoming PayloadMessage. This method blocks.
func (wac *WebSocketAgentConnector) ReadPayload() (msg PayloadMessage, err error) {
	msg, ok := <-wac.msgInPayloadChan
	if !ok {
		err = fmt.Errorf("connection was closed")
	}
	return
}

// Payloads channel of incoming PayloadMessages, closed with the connection.
func (wac *WebSocketAgentConnector) Payloads() <-chan PayloadMessage {
	return wac.msgInPayloadChan
}

// Peers channel of peer changes. Changes are dropped while the channel is full.
func (wac *WebSocketAgentConnector) Peers() <-chan PeerMessage {
	return wac.msgInPeerChan
}

// Syscall will be send to the server. An answer or an error after a timeout will be returned.
func (wac *WebSocketAgentConnector) Syscall(request string, timeout time.Duration) (response []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	wac.msgOutChan <- newSyscallRequestMessage(request)
	if err = <-wac.msgOutErr; err != nil {
		return
	}

	select {
	case resp, ok := <-wac.msgInSyscallChan:
		if !ok {
			err = fmt.Errorf("connection was closed")
		}
		response = resp
		return

	case <-time.After(timeout):
		err = fmt.Errorf("syscall response timed out")
		return
	}
}

// Close this WebSocketAgentConnector.
func (wac *WebSocketAgentConnector) Close() {
	defer func() {
		// channel is already closed
		_ = recover()
	}()

	close(wac.closeSyn)
	<-wac.closeAck
}
