// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// maxDatagramSize is the receive buffer size, large enough for any UDP datagram.
const maxDatagramSize = 1 << 16

// udpTransport is a session.Transport on a shared UDP socket.
type udpTransport struct {
	conn *net.UDPConn
}

// listenUDP binds a UDP socket with the configured socket options.
func listenUDP(address string, conf SocketConfig) (*udpTransport, error) {
	lc := net.ListenConfig{Control: socketControl(conf)}

	pc, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, err
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("%T is no UDP connection", pc)
	}
	return &udpTransport{conn: conn}, nil
}

func (t *udpTransport) SendTo(b []byte, addr *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(b, addr)
	return err
}

// sendMessage marshals and sends an offline message.
func (t *udpTransport) sendMessage(msg msgs.Message, addr *net.UDPAddr) error {
	data, err := msgs.MarshalBytes(msg)
	if err != nil {
		return err
	}
	return t.SendTo(data, addr)
}

func (t *udpTransport) localAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

func (t *udpTransport) Close() error {
	return t.conn.Close()
}

// receive datagrams until the socket is closed. The data passed to handle is only valid during the call.
func (t *udpTransport) receive(handle func(data []byte, addr *net.UDPAddr)) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if errors.Is(err, net.ErrClosed) {
			return nil
		} else if err != nil {
			return err
		}

		if n > 0 {
			handle(buf[:n], addr)
		}
	}
}
