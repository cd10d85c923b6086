// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"

	"github.com/dtn7/raknet-go/pkg/raknet"
)

// wamStatus is a webAgentMessage to acknowledge a previous message or report an error with a non-empty string.
// This message might be initiated from both a client or a server.
type wamStatus struct {
	errorMsg string
}

// newStatusMessage creates a new wamStatus webAgentMessage.
func newStatusMessage(err error) *wamStatus {
	if err == nil {
		return &wamStatus{""}
	}
	return &wamStatus{err.Error()}
}

func (*wamStatus) typeCode() uint64 {
	return wamStatusCode
}

func (ws *wamStatus) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(ws.errorMsg, w)
}

func (ws *wamStatus) UnmarshalCbor(r io.Reader) (err error) {
	ws.errorMsg, err = cboring.ReadTextString(r)
	return
}

// wamRegister is a webAgentMessage sent from a client to the server to register itself for an endpoint.
type wamRegister struct {
	endpoint string
}

// newRegisterMessage creates a new wamRegister webAgentMessage.
func newRegisterMessage(endpoint string) *wamRegister {
	return &wamRegister{endpoint}
}

func (*wamRegister) typeCode() uint64 {
	return wamRegisterCode
}

func (wr *wamRegister) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(wr.endpoint, w)
}

func (wr *wamRegister) UnmarshalCbor(r io.Reader) (err error) {
	wr.endpoint, err = cboring.ReadTextString(r)
	return
}

// wamPayload is a webAgentMessage for a RakNet message from or to a peer, as a CBOR array of the peer's address,
// the reliability, the channel and the payload.
// This message might be initiated from both a client or a server.
type wamPayload struct {
	msg PayloadMessage
}

// newPayloadMessage creates a new wamPayload webAgentMessage.
func newPayloadMessage(msg PayloadMessage) *wamPayload {
	return &wamPayload{msg}
}

func (*wamPayload) typeCode() uint64 {
	return wamPayloadCode
}

func (wp *wamPayload) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(string(wp.msg.Peer), w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(wp.msg.Reliability), w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(uint64(wp.msg.Channel), w); err != nil {
		return err
	}
	return cboring.WriteByteString(wp.msg.Payload, w)
}

func (wp *wamPayload) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 4 {
		return fmt.Errorf("expected CBOR array of 4 elements, not %d", n)
	}

	if peer, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		wp.msg.Peer = Endpoint(peer)
	}

	if rel, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if rel > 0xFF || !raknet.Reliability(rel).IsValid() {
		return fmt.Errorf("invalid reliability %d", rel)
	} else {
		wp.msg.Reliability = raknet.Reliability(rel)
	}

	if channel, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if channel >= raknet.MaxChannels {
		return fmt.Errorf("invalid channel %d", channel)
	} else {
		wp.msg.Channel = uint8(channel)
	}

	payload, err := cboring.ReadByteString(r)
	wp.msg.Payload = payload
	return err
}

// wamPeer is a webAgentMessage sent from the server on a connected or disconnected peer.
type wamPeer struct {
	peer      string
	connected bool
}

func newPeerMessage(msg PeerMessage) *wamPeer {
	return &wamPeer{peer: string(msg.Peer), connected: msg.Connected}
}

func (*wamPeer) typeCode() uint64 {
	return wamPeerCode
}

func (wp *wamPeer) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(wp.peer, w); err != nil {
		return err
	}
	return cboring.WriteBoolean(wp.connected, w)
}

func (wp *wamPeer) UnmarshalCbor(r io.Reader) (err error) {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("expected CBOR array of 2 elements, not %d", n)
	}

	if wp.peer, err = cboring.ReadTextString(r); err != nil {
		return
	}
	wp.connected, err = cboring.ReadBoolean(r)
	return
}

// wamSyscallRequest is a webAgentMessage for requesting syscalls from the client side.
type wamSyscallRequest struct {
	request string
}

// newSyscallRequestMessage creates a new wamSyscallRequest webAgentMessage.
func newSyscallRequestMessage(request string) *wamSyscallRequest {
	return &wamSyscallRequest{request}
}

func (*wamSyscallRequest) typeCode() uint64 {
	return wamSyscallRequestCode
}

func (wsr *wamSyscallRequest) MarshalCbor(w io.Writer) error {
	return cboring.WriteTextString(wsr.request, w)
}

func (wsr *wamSyscallRequest) UnmarshalCbor(r io.Reader) (err error) {
	wsr.request, err = cboring.ReadTextString(r)
	return
}

type wamSyscallResponse struct {
	request  string
	response []byte
}

// newSyscallResponseMessage creates a new wamSyscallResponse webAgentMessage.
func newSyscallResponseMessage(request string, response []byte) *wamSyscallResponse {
	return &wamSyscallResponse{
		request:  request,
		response: response,
	}
}

func (*wamSyscallResponse) typeCode() uint64 {
	return wamSyscallResponseCode
}

func (wsr *wamSyscallResponse) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(wsr.request, w); err != nil {
		return err
	}

	return cboring.WriteByteString(wsr.response, w)
}

func (wsr *wamSyscallResponse) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("expected CBOR array of 2 elements, not %d", n)
	}

	if request, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		wsr.request = request
	}

	if response, err := cboring.ReadByteString(r); err != nil {
		return err
	} else {
		wsr.response = response
	}

	return nil
}
