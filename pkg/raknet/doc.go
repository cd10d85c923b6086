// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package raknet provides RakNet connections over UDP: a Listener accepting clients and a Client connecting to a
// server. Both report their peers' lifecycle and messages as Events on a status channel.
//
// The implementation follows RakNet protocol version 9 and is wire compatible with RakNet servers and clients.
package raknet
