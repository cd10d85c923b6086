// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"net"
	"testing"
)

func TestConnectionRequest(t *testing.T) {
	req := &ConnectionRequest{ClientGuid: 0x0102030405060708, Timestamp: 1000}

	data, err := MarshalBytes(req)
	if err != nil {
		t.Fatal(err)
	} else if l := len(data); l != 18 {
		t.Fatalf("CONNECTION_REQUEST has a length of %d", l)
	}

	msg, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatal(err)
	} else if reqIn := msg.(*ConnectionRequest); *reqIn != *req {
		t.Fatalf("expected %v, got %v", req, reqIn)
	}
}

func TestConnectionRequestAccepted(t *testing.T) {
	client := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 1234}
	cra := &ConnectionRequestAccepted{ClientAddress: client, ClientTimestamp: 23, ServerTimestamp: 42}

	data, err := MarshalBytes(cra)
	if err != nil {
		t.Fatal(err)
	} else if l := len(data); l != 1+7+2+10*7+16 {
		t.Fatalf("CONNECTION_REQUEST_ACCEPTED has a length of %d", l)
	}

	msg, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatal(err)
	}

	craIn := msg.(*ConnectionRequestAccepted)
	if craIn.ClientAddress.String() != client.String() {
		t.Fatalf("client address is %v", craIn.ClientAddress)
	} else if craIn.ClientTimestamp != 23 || craIn.ServerTimestamp != 42 {
		t.Fatalf("timestamps are %d and %d", craIn.ClientTimestamp, craIn.ServerTimestamp)
	}
}

func TestNewIncomingConnection(t *testing.T) {
	server := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 19132}
	nic := &NewIncomingConnection{ServerAddress: server, ServerTimestamp: 5, ClientTimestamp: 6}

	data, err := MarshalBytes(nic)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatal(err)
	}

	nicIn := msg.(*NewIncomingConnection)
	if nicIn.ServerAddress.String() != server.String() {
		t.Fatalf("server address is %v", nicIn.ServerAddress)
	} else if nicIn.ServerTimestamp != 5 || nicIn.ClientTimestamp != 6 {
		t.Fatalf("timestamps are %d and %d", nicIn.ServerTimestamp, nicIn.ClientTimestamp)
	}
}
