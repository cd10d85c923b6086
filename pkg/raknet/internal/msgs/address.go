// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"fmt"
	"io"
	"net"
)

const (
	addressVersion4 uint8 = 4
	addressVersion6 uint8 = 6

	// addressVersion6Padding are unused bytes trailing an IPv6 address.
	addressVersion6Padding = 10
)

// nullAddress is used to fill the system address lists of login packets.
var nullAddress = &net.UDPAddr{IP: net.IPv4zero, Port: 0}

// writeAddress writes an IPv4 or IPv6 address; all address octets are inverted.
func writeAddress(w io.Writer, addr *net.UDPAddr) error {
	if addr == nil {
		addr = nullAddress
	}

	var (
		version uint8
		ip      net.IP
	)
	if ip4 := addr.IP.To4(); ip4 != nil {
		version, ip = addressVersion4, ip4
	} else if ip16 := addr.IP.To16(); ip16 != nil {
		version, ip = addressVersion6, ip16
	} else {
		return fmt.Errorf("address %v is neither IPv4 nor IPv6", addr)
	}

	buf := make([]byte, 0, 1+len(ip)+addressVersion6Padding)
	buf = append(buf, version)
	for _, b := range ip {
		buf = append(buf, ^b)
	}
	if version == addressVersion6 {
		buf = append(buf, make([]byte, addressVersion6Padding)...)
	}

	if _, err := w.Write(buf); err != nil {
		return err
	}
	return writeFields(w, uint16(addr.Port))
}

// readAddress reads an address written by writeAddress.
func readAddress(r io.Reader) (*net.UDPAddr, error) {
	var version uint8
	if err := readFields(r, &version); err != nil {
		return nil, err
	}

	var ipLen int
	switch version {
	case addressVersion4:
		ipLen = net.IPv4len
	case addressVersion6:
		ipLen = net.IPv6len
	default:
		return nil, fmt.Errorf("unknown address version %d", version)
	}

	ip := make(net.IP, ipLen)
	if _, err := io.ReadFull(r, ip); err != nil {
		return nil, err
	}
	for i := range ip {
		ip[i] = ^ip[i]
	}

	if version == addressVersion6 {
		if _, err := io.ReadFull(r, make([]byte, addressVersion6Padding)); err != nil {
			return nil, err
		}
	}

	var port uint16
	if err := readFields(r, &port); err != nil {
		return nil, err
	}

	return &net.UDPAddr{IP: ip, Port: int(port)}, nil
}
