// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package raknet

import (
	"syscall"

	log "github.com/sirupsen/logrus"
)

// socketControl only warns about unsupported socket options on platforms other than Linux.
func socketControl(conf SocketConfig) func(network, address string, rawConn syscall.RawConn) error {
	return func(_, address string, _ syscall.RawConn) error {
		if conf.DontFragment || conf.ReadBuffer > 0 || conf.WriteBuffer > 0 {
			log.WithField("address", address).Warn("Socket options are only supported on Linux")
		}
		return nil
	}
}
