// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint addresses a RakNet peer by its "host:port" address. The special AnyPeer Endpoint matches every peer.
type Endpoint string

// AnyPeer is an Endpoint for all peers.
const AnyPeer Endpoint = "*"

// ParseEndpoint checks an address to be either AnyPeer or a literal "ip:port" address.
func ParseEndpoint(s string) (Endpoint, error) {
	if Endpoint(s) == AnyPeer {
		return AnyPeer, nil
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("endpoint host %q is no IP address", host)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return "", fmt.Errorf("endpoint port %q is invalid", port)
	}

	return EndpointOf(&net.UDPAddr{IP: ip, Port: int(p)}), nil
}

// MustParseEndpoint panics for an invalid address.
func MustParseEndpoint(s string) Endpoint {
	e, err := ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return e
}

// EndpointOf a peer's UDP address.
func EndpointOf(addr *net.UDPAddr) Endpoint {
	if ip4 := addr.IP.To4(); ip4 != nil {
		return Endpoint(net.JoinHostPort(ip4.String(), strconv.Itoa(addr.Port)))
	}
	return Endpoint(addr.String())
}

// Matches checks if this Endpoint addresses another one, which is true for equal Endpoints or AnyPeer.
func (e Endpoint) Matches(other Endpoint) bool {
	return e == AnyPeer || e == other
}

func (e Endpoint) String() string {
	return string(e)
}
