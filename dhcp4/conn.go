// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dhcp4

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/net/ipv4"
)

// Well known BOOTP ports.
const (
	ServerPort = 67
	ClientPort = 68
)

// BroadcastAddr is where replies go: the client has no address yet.
var BroadcastAddr = &net.UDPAddr{IP: net.IPv4bcast, Port: ClientPort}

type conn interface {
	io.Closer
	Recv([]byte) (b []byte, addr *net.UDPAddr, ifidx int, err error)
	Send(b []byte, addr *net.UDPAddr, ifidx int) error
	LocalAddr() net.Addr
}

// Conn is a broadcast-capable UDP socket for DHCP traffic.
//
// Recv and Send may be called from different goroutines. Close
// unblocks a pending Recv.
type Conn struct {
	conn  conn
	ifidx int
}

// NewConn creates a Conn bound to the given UDP ip:port. If intf is
// not nil, the socket is tied to that interface where the platform
// allows it, and broadcasts leave through it.
func NewConn(addr string, intf *net.Interface) (*Conn, error) {
	if addr == "" {
		addr = fmt.Sprintf(":%d", ServerPort)
	}
	c, err := newPortableConn(addr, intf)
	if err != nil {
		return nil, err
	}
	ret := &Conn{conn: c}
	if intf != nil {
		ret.ifidx = intf.Index
	}
	return ret, nil
}

// Close closes the DHCP socket.
// Any blocked Recv or Send operations will be unblocked and return errors.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Recv reads one datagram into buf and returns it with its source.
func (c *Conn) Recv(buf []byte) ([]byte, *net.UDPAddr, error) {
	b, addr, _, err := c.conn.Recv(buf)
	return b, addr, err
}

// SendTo writes b to addr, leaving through the bound interface if
// there is one.
func (c *Conn) SendTo(b []byte, addr *net.UDPAddr) error {
	return c.conn.Send(b, addr, c.ifidx)
}

// LocalAddr returns the address the socket is bound to.
func (c *Conn) LocalAddr() *net.UDPAddr {
	a, _ := c.conn.LocalAddr().(*net.UDPAddr)
	return a
}

type portableConn struct {
	conn *ipv4.PacketConn
}

func newPortableConn(addr string, intf *net.Interface) (conn, error) {
	var ifname string
	if intf != nil {
		ifname = intf.Name
	}
	lc := net.ListenConfig{Control: socketControl(ifname)}
	c, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, err
	}
	l := ipv4.NewPacketConn(c)
	if err = l.SetControlMessage(ipv4.FlagInterface, true); err != nil && intf != nil {
		// Without control messages we cannot pick the outgoing
		// interface, which the caller explicitly asked for.
		l.Close()
		return nil, fmt.Errorf("enabling interface control messages: %w", err)
	}
	return &portableConn{l}, nil
}

func (c *portableConn) Close() error {
	return c.conn.Close()
}

func (c *portableConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *portableConn) Recv(b []byte) (rb []byte, addr *net.UDPAddr, ifidx int, err error) {
	n, cm, a, err := c.conn.ReadFrom(b)
	if err != nil {
		return nil, nil, 0, err
	}
	if cm != nil {
		ifidx = cm.IfIndex
	}
	ua, _ := a.(*net.UDPAddr)
	return b[:n], ua, ifidx, nil
}

func (c *portableConn) Send(b []byte, addr *net.UDPAddr, ifidx int) error {
	if ifidx <= 0 {
		_, err := c.conn.WriteTo(b, nil, addr)
		return err
	}
	cm := ipv4.ControlMessage{
		IfIndex: ifidx,
	}
	_, err := c.conn.WriteTo(b, &cm, addr)
	return err
}
