// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
)

// Message describes all kind of RakNet packets, which have their serialization and deserialization in common.
//
// Each Message writes and expects its leading message id itself.
type Message interface {
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

const (
	CONNECTED_PING                uint8 = 0x00
	CONNECTED_PONG                uint8 = 0x03
	DETECT_LOST_CONNECTIONS       uint8 = 0x04
	OPEN_CONNECTION_REQUEST_1     uint8 = 0x05
	OPEN_CONNECTION_REPLY_1       uint8 = 0x06
	OPEN_CONNECTION_REQUEST_2     uint8 = 0x07
	OPEN_CONNECTION_REPLY_2       uint8 = 0x08
	CONNECTION_REQUEST            uint8 = 0x09
	CONNECTION_REQUEST_ACCEPTED   uint8 = 0x10
	CONNECTION_ATTEMPT_FAILED     uint8 = 0x11
	ALREADY_CONNECTED             uint8 = 0x12
	NEW_INCOMING_CONNECTION       uint8 = 0x13
	NO_FREE_INCOMING_CONNECTIONS  uint8 = 0x14
	DISCONNECTION_NOTIFICATION    uint8 = 0x15
	CONNECTION_LOST               uint8 = 0x16
	CONNECTION_BANNED             uint8 = 0x17
	INCOMPATIBLE_PROTOCOL_VERSION uint8 = 0x19

	// USER_PACKET_ENUM is the first message id free for applications.
	USER_PACKET_ENUM uint8 = 0x86

	CUSTOM_0 uint8 = 0x80
	CUSTOM_4 uint8 = 0x84
	CUSTOM_F uint8 = 0x8F

	NACK uint8 = 0xA0
	ACK  uint8 = 0xC0
)

// ProtocolVersion is the supported RakNet network protocol.
const ProtocolVersion uint8 = 9

// messages maps the different RakNet message ids to an example instance of their type.
var messages = map[uint8]Message{
	CONNECTED_PING:                &ConnectedPing{},
	CONNECTED_PONG:                &ConnectedPong{},
	DETECT_LOST_CONNECTIONS:       &SignalMessage{},
	OPEN_CONNECTION_REQUEST_1:     &OpenConnectionRequestOne{},
	OPEN_CONNECTION_REPLY_1:       &OpenConnectionReplyOne{},
	OPEN_CONNECTION_REQUEST_2:     &OpenConnectionRequestTwo{},
	OPEN_CONNECTION_REPLY_2:       &OpenConnectionReplyTwo{},
	CONNECTION_REQUEST:            &ConnectionRequest{},
	CONNECTION_REQUEST_ACCEPTED:   &ConnectionRequestAccepted{},
	CONNECTION_ATTEMPT_FAILED:     &SignalMessage{},
	ALREADY_CONNECTED:             &SignalMessage{},
	NEW_INCOMING_CONNECTION:       &NewIncomingConnection{},
	NO_FREE_INCOMING_CONNECTIONS:  &SignalMessage{},
	DISCONNECTION_NOTIFICATION:    &SignalMessage{},
	CONNECTION_LOST:               &SignalMessage{},
	CONNECTION_BANNED:             &ConnectionBanned{},
	INCOMPATIBLE_PROTOCOL_VERSION: &IncompatibleProtocolVersion{},
	NACK:                          &AcknowledgeMessage{},
	ACK:                           &AcknowledgeMessage{},
}

// IsCustomFrame checks if a message id identifies a CUSTOM datagram frame.
func IsCustomFrame(id uint8) bool {
	return id >= CUSTOM_0 && id <= CUSTOM_F
}

// NewMessage creates a new Message type for a given message id.
func NewMessage(id uint8) (msg Message, err error) {
	if IsCustomFrame(id) {
		msg = &CustomFrame{}
		return
	}

	msgType, exists := messages[id]
	if !exists {
		err = fmt.Errorf("no RakNet Message registered for message id %x", id)
		return
	}

	msgElem := reflect.TypeOf(msgType).Elem()
	msg = reflect.New(msgElem).Interface().(Message)
	return
}

// ReadMessage parses the next RakNet message from the Reader.
func ReadMessage(r io.Reader) (msg Message, err error) {
	msgIdBytes := make([]byte, 1)
	if _, msgIdErr := io.ReadFull(r, msgIdBytes); msgIdErr != nil {
		err = msgIdErr
		return
	}

	msg, msgErr := NewMessage(msgIdBytes[0])
	if msgErr != nil {
		err = msgErr
		return
	}

	mr := io.MultiReader(bytes.NewBuffer(msgIdBytes), r)

	err = msg.Unmarshal(mr)
	return
}
