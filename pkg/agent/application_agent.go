// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

// ApplicationAgent is an interface to describe application agents, which can both receive and transmit payloads.
// Each implementation must provide the following methods to communicate its endpoints. Furthermore two channels
// must be available, one for receiving and one for sending Messages.
//
// On closing down, an ApplicationAgent MUST close its MessageSender channel and MUST leave the MessageReceiver
// open. The supervising code MUST close the MessageReceiver of its subjects.
type ApplicationAgent interface {
	// Endpoints returns the Endpoints that this ApplicationAgent answers to.
	Endpoints() []Endpoint

	// MessageReceiver is a channel on which the ApplicationAgent must listen for incoming Messages.
	MessageReceiver() chan Message

	// MessageSender is a channel to which the ApplicationAgent can send outgoing Messages.
	MessageSender() chan Message
}

// bagContainsEndpoint checks if some bag of endpoints matches at least one of another collection of endpoints.
func bagContainsEndpoint(bag []Endpoint, endpoints []Endpoint) bool {
	for _, b := range bag {
		for _, e := range endpoints {
			if b.Matches(e) {
				return true
			}
		}
	}
	return false
}

// AppAgentContainsEndpoint checks if an ApplicationAgent listens to at least one of the requested endpoints.
func AppAgentContainsEndpoint(app ApplicationAgent, endpoints []Endpoint) bool {
	return bagContainsEndpoint(app.Endpoints(), endpoints)
}

// AppAgentHasEndpoint checks if an ApplicationAgent listens to this endpoint.
func AppAgentHasEndpoint(app ApplicationAgent, endpoint Endpoint) bool {
	return AppAgentContainsEndpoint(app, []Endpoint{endpoint})
}
