// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package raknet

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Within this file, Linux-specific socket options are configured for the UDP socket. Setting the don't fragment bit
// lets oversized MTU attempts fail instead of being fragmented by the IP layer, as described in ip(7) and ipv6(7).
// <https://man7.org/linux/man-pages/man7/ip.7.html>

// socketControl returns the net.ListenConfig's Control function to set the socket options.
func socketControl(conf SocketConfig) func(network, address string, rawConn syscall.RawConn) error {
	return func(network, _ string, rawConn syscall.RawConn) (err error) {
		type sockopt struct {
			level, opt, value int
		}

		var opts []sockopt
		if conf.DontFragment {
			if network == "udp6" {
				opts = append(opts, sockopt{unix.IPPROTO_IPV6, unix.IPV6_MTU_DISCOVER, unix.IPV6_PMTUDISC_DO})
			} else {
				opts = append(opts, sockopt{unix.IPPROTO_IP, unix.IP_MTU_DISCOVER, unix.IP_PMTUDISC_DO})
			}
		}
		if conf.ReadBuffer > 0 {
			opts = append(opts, sockopt{unix.SOL_SOCKET, unix.SO_RCVBUF, conf.ReadBuffer})
		}
		if conf.WriteBuffer > 0 {
			opts = append(opts, sockopt{unix.SOL_SOCKET, unix.SO_SNDBUF, conf.WriteBuffer})
		}

		ctrlErr := rawConn.Control(func(fd uintptr) {
			for _, o := range opts {
				err = unix.SetsockoptInt(int(fd), o.level, o.opt, o.value)
				if err != nil {
					return
				}
			}
		})
		if ctrlErr != nil {
			err = ctrlErr
		}

		return
	}
}
