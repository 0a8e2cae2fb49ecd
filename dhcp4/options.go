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
	"encoding/binary"
	"fmt"
	"net"
)

// DHCP option tags used by the responder.
const (
	OptPad              = 0
	OptSubnetMask       = 1
	OptRouter           = 3
	OptDNSServers       = 6
	OptLeaseTime        = 51
	OptMessageType      = 53
	OptServerIdentifier = 54
	OptEnd              = 255
)

// WalkOptions scans a tag/length/value option stream, calling fn for
// each option in wire order. Tag 0 is a single padding byte and tag
// 255 ends the stream. Returning true from fn stops the walk.
//
// An option whose length byte or value runs past the end of bs stops
// the walk with an error.
func WalkOptions(bs []byte, fn func(tag byte, value []byte) (stop bool)) error {
	for len(bs) > 0 {
		tag := bs[0]
		switch tag {
		case OptPad:
			bs = bs[1:]
		case OptEnd:
			return nil
		default:
			if len(bs) < 2 {
				return fmt.Errorf("option %d has no length byte", tag)
			}
			l := int(bs[1])
			if len(bs[2:]) < l {
				return fmt.Errorf("option %d claims to have %d bytes of payload, but only has %d bytes", tag, l, len(bs[2:]))
			}
			if fn(tag, bs[2:2+l]) {
				return nil
			}
			bs = bs[2+l:]
		}
	}
	return nil
}

// Options stores DHCP options by tag.
type Options map[int][]byte

// ParseOptions collects every option of bs. Unlike Decode, it keeps
// walking past option 53, and a repeated tag keeps its first value.
func ParseOptions(bs []byte) (Options, error) {
	ret := make(Options)
	err := WalkOptions(bs, func(tag byte, value []byte) bool {
		if _, ok := ret[int(tag)]; !ok {
			ret[int(tag)] = value
		}
		return false
	})
	return ret, err
}

// Byte returns the value of single-byte option n, if the option value
// is indeed a single byte.
func (o Options) Byte(n int) (byte, bool) {
	v := o[n]
	if v == nil || len(v) != 1 {
		return 0, false
	}
	return v[0], true
}

// Uint32 returns the value of 4-byte option n as a big-endian number.
func (o Options) Uint32(n int) (uint32, bool) {
	v := o[n]
	if v == nil || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// IP returns the value of option n as an IPv4 address.
func (o Options) IP(n int) (net.IP, bool) {
	v := o[n]
	if v == nil || len(v) != 4 {
		return nil, false
	}
	return net.IPv4(v[0], v[1], v[2], v[3]).To4(), true
}
