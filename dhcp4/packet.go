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

// Package dhcp4 implements the subset of the DHCPv4 wire format that a
// minimal address responder needs: request decoding, reply encoding and a
// broadcast-capable UDP socket.
package dhcp4 // import "github.com/metal-stack/fielddhcp/dhcp4"

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// MessageType is the DHCP message type carried in option 53.
type MessageType byte

// Message types this package knows about. Only Discover and Request
// are ever acted upon, Offer and Ack are what we send back.
const (
	MsgDiscover MessageType = 1
	MsgOffer    MessageType = 2
	MsgRequest  MessageType = 3
	MsgDecline  MessageType = 4
	MsgAck      MessageType = 5
	MsgNack     MessageType = 6
	MsgRelease  MessageType = 7
	MsgInform   MessageType = 8
)

func (mt MessageType) String() string {
	switch mt {
	case 0:
		return "NONE"
	case MsgDiscover:
		return "DISCOVER"
	case MsgOffer:
		return "OFFER"
	case MsgRequest:
		return "REQUEST"
	case MsgDecline:
		return "DECLINE"
	case MsgAck:
		return "ACK"
	case MsgNack:
		return "NAK"
	case MsgRelease:
		return "RELEASE"
	case MsgInform:
		return "INFORM"
	default:
		return fmt.Sprintf("<unknown DHCP message type %d>", byte(mt))
	}
}

// BOOTP opcodes.
const (
	opRequest = 1
	opReply   = 2
)

// Fixed offsets of the BOOTP header.
const (
	headerLen    = 236
	optionsStart = headerLen + 4
	// Header, magic cookie and room for at least one option byte.
	minPacketLen = optionsStart + 4

	offXid    = 4
	offFlags  = 10
	offYiaddr = 16
	offSiaddr = 20
	offChaddr = 28
	chaddrLen = 16
)

var magic = []byte{99, 130, 83, 99}

// Reasons a datagram is not a usable request.
var (
	ErrShortPacket = errors.New("packet too short to be a DHCP request")
	ErrNotRequest  = errors.New("packet is not a BOOTREQUEST")
	ErrBadMagic    = errors.New("invalid DHCP magic cookie")
)

// Request is the part of a client request the responder cares about.
type Request struct {
	// TransactionID is echoed verbatim in the reply.
	TransactionID [4]byte
	// HardwareAddr is always the first 6 bytes of chaddr, whatever
	// the packet claims as hardware length.
	HardwareAddr net.HardwareAddr
	// Type is the value of the first well-formed option 53, or 0 if
	// none was found.
	Type MessageType
}

// Actionable reports whether the request is one we answer.
func (r *Request) Actionable() bool {
	return r.Type == MsgDiscover || r.Type == MsgRequest
}

// XID returns the transaction ID as a number, for logging.
func (r *Request) XID() uint32 {
	return binary.BigEndian.Uint32(r.TransactionID[:])
}

// Decode parses a raw datagram into a Request.
//
// The option scan stops at the first option 53 of length 1, so any
// options following it are never looked at. A truncated option
// aborts the scan, and the request comes back with Type 0.
func Decode(b []byte) (*Request, error) {
	if len(b) < minPacketLen {
		return nil, ErrShortPacket
	}
	if b[0] != opRequest {
		return nil, ErrNotRequest
	}
	if !bytes.Equal(b[headerLen:optionsStart], magic) {
		return nil, ErrBadMagic
	}

	ret := &Request{
		HardwareAddr: net.HardwareAddr(append([]byte(nil), b[offChaddr:offChaddr+6]...)),
	}
	copy(ret.TransactionID[:], b[offXid:offXid+4])

	// Errors here mean a truncated option, which just leaves Type unset.
	_ = WalkOptions(b[optionsStart:], func(tag byte, value []byte) bool {
		if tag == OptMessageType && len(value) == 1 {
			ret.Type = MessageType(value[0])
			return true
		}
		return false
	})

	return ret, nil
}
