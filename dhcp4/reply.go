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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// LeaseDuration is the lease time advertised in every reply.
const LeaseDuration = 8 * time.Hour

// ReplyLen is the length of every marshalled reply. Replies are not
// padded to the 300 byte BOOTP minimum; a few strict clients want
// that, most don't care.
const ReplyLen = optionsStart + 3 + 5*6 + 1

// ServerInfo is the per-server data stamped into every reply.
type ServerInfo struct {
	ServerAddr net.IP
	SubnetMask net.IP
	Router     net.IP
	DNS        net.IP
}

// Reply is an OFFER or ACK for a single client.
type Reply struct {
	Type          MessageType
	TransactionID [4]byte
	HardwareAddr  net.HardwareAddr
	YourAddr      net.IP
}

// NewReply returns a reply of type mt to req, assigning addr.
func NewReply(req *Request, mt MessageType, addr net.IP) *Reply {
	return &Reply{
		Type:          mt,
		TransactionID: req.TransactionID,
		HardwareAddr:  req.HardwareAddr,
		YourAddr:      addr,
	}
}

// XID returns the transaction ID as a number, for logging.
func (r *Reply) XID() uint32 {
	return binary.BigEndian.Uint32(r.TransactionID[:])
}

// Marshal returns the wire encoding of r.
func (r *Reply) Marshal(info *ServerInfo) ([]byte, error) {
	if r.Type != MsgOffer && r.Type != MsgAck {
		return nil, fmt.Errorf("cannot marshal reply of type %s", r.Type)
	}
	if len(r.HardwareAddr) < 6 {
		return nil, fmt.Errorf("hardware address %q is shorter than 6 bytes", r.HardwareAddr)
	}
	yiaddr := r.YourAddr.To4()
	if yiaddr == nil {
		return nil, fmt.Errorf("assigned address %q is not IPv4", r.YourAddr)
	}
	addrs, err := info.addrs()
	if err != nil {
		return nil, err
	}

	var hdr [headerLen]byte
	hdr[0] = opReply
	hdr[1] = 1 // Ethernet
	hdr[2] = 6
	copy(hdr[offXid:], r.TransactionID[:])
	// Broadcast flag: the client can't receive unicast on an address
	// it doesn't own yet.
	binary.BigEndian.PutUint16(hdr[offFlags:], 0x8000)
	copy(hdr[offYiaddr:], yiaddr)
	copy(hdr[offSiaddr:], addrs[0])
	copy(hdr[offChaddr:offChaddr+chaddrLen], r.HardwareAddr[:6])

	var b bytes.Buffer
	b.Grow(ReplyLen)
	b.Write(hdr[:])
	b.Write(magic)

	b.Write([]byte{OptMessageType, 1, byte(r.Type)})
	writeOpt(&b, OptServerIdentifier, addrs[0])
	writeOpt(&b, OptSubnetMask, addrs[1])
	writeOpt(&b, OptRouter, addrs[2])
	writeOpt(&b, OptDNSServers, addrs[3])
	var lt [4]byte
	binary.BigEndian.PutUint32(lt[:], uint32(LeaseDuration/time.Second))
	writeOpt(&b, OptLeaseTime, lt[:])
	b.WriteByte(OptEnd)

	return b.Bytes(), nil
}

// ErrNotReply is returned by DecodeReply for datagrams that are not a
// BOOTREPLY.
var ErrNotReply = errors.New("packet is not a BOOTREPLY")

// DecodeReply parses a reply sent by a DHCP server, ours or another
// one on the segment. Only the fields a Reply carries are extracted.
func DecodeReply(b []byte) (*Reply, error) {
	if len(b) < minPacketLen {
		return nil, ErrShortPacket
	}
	if b[0] != opReply {
		return nil, ErrNotReply
	}
	if !bytes.Equal(b[headerLen:optionsStart], magic) {
		return nil, ErrBadMagic
	}
	opts, err := ParseOptions(b[optionsStart:])
	if err != nil {
		return nil, err
	}
	mt, _ := opts.Byte(OptMessageType)

	ret := &Reply{
		Type:         MessageType(mt),
		HardwareAddr: net.HardwareAddr(append([]byte(nil), b[offChaddr:offChaddr+6]...)),
		YourAddr:     net.IP(append([]byte(nil), b[offYiaddr:offYiaddr+4]...)),
	}
	copy(ret.TransactionID[:], b[offXid:offXid+4])
	return ret, nil
}

func writeOpt(b *bytes.Buffer, tag byte, value []byte) {
	b.WriteByte(tag)
	b.WriteByte(byte(len(value)))
	b.Write(value)
}

// addrs returns server, mask, router and DNS as 4-byte slices.
func (s *ServerInfo) addrs() ([4]net.IP, error) {
	var ret [4]net.IP
	if s == nil {
		return ret, errors.New("no server info given")
	}
	for i, ip := range []net.IP{s.ServerAddr, s.SubnetMask, s.Router, s.DNS} {
		ip4 := ip.To4()
		if ip4 == nil {
			return ret, fmt.Errorf("server info address %q is not IPv4", ip)
		}
		ret[i] = ip4
	}
	return ret, nil
}
