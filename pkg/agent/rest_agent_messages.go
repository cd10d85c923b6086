// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

// RestRegisterRequest describes a JSON to be POSTed to /register.
type RestRegisterRequest struct {
	Endpoint string `json:"endpoint"`
}

// RestRegisterResponse describes a JSON response for /register.
type RestRegisterResponse struct {
	Error string `json:"error"`
	UUID  string `json:"uuid"`
}

// RestUnregisterRequest describes a JSON to be POSTed to /unregister.
type RestUnregisterRequest struct {
	UUID string `json:"uuid"`
}

// RestUnregisterResponse describes a JSON response for /unregister.
type RestUnregisterResponse struct {
	Error string `json:"error"`
}

// RestFetchRequest describes a JSON to be POSTed to /fetch.
type RestFetchRequest struct {
	UUID string `json:"uuid"`
}

// RestPayload is a PayloadMessage's JSON representation. Its Reliability is named as in "RELIABLE_ORDERED".
type RestPayload struct {
	Peer        string `json:"peer"`
	Reliability string `json:"reliability"`
	Channel     uint8  `json:"channel"`
	Payload     []byte `json:"payload"`
}

// RestFetchResponse describes a JSON response for /fetch.
type RestFetchResponse struct {
	Error    string        `json:"error"`
	Payloads []RestPayload `json:"payloads"`
}

// RestSendRequest describes a JSON to be POSTed to /send.
type RestSendRequest struct {
	UUID string `json:"uuid"`
	RestPayload
}

// RestSendResponse describes a JSON response for /send.
type RestSendResponse struct {
	Error string `json:"error"`
}
