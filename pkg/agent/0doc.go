// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent describes an interface for applications to exchange messages with RakNet peers.
//
// The main interface is the ApplicationAgent, which only requires two channels for incoming and outgoing Messages.
// Additionally, it requests a list of endpoints, i.e., peer addresses. Due to this flexibility, an ApplicationAgent
// can be implemented in various forms, e.g., as an external interface for third-party programs or as an internal
// module. Both possibilities are already included in this package, for example the WebSocketAgent, the RestAgent or
// the PingAgent.
package agent
