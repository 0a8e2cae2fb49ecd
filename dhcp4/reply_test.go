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
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testServer = &ServerInfo{
	ServerAddr: net.ParseIP("192.168.1.1"),
	SubnetMask: net.ParseIP("255.255.255.0"),
	Router:     net.ParseIP("192.168.1.254"),
	DNS:        net.ParseIP("8.8.8.8"),
}

func testReply(mt MessageType) *Reply {
	return &Reply{
		Type:          mt,
		TransactionID: [4]byte{0x12, 0x34, 0x56, 0x78},
		HardwareAddr:  testMAC,
		YourAddr:      net.ParseIP("192.168.1.50"),
	}
}

func TestReplyLayout(t *testing.T) {
	b, err := testReply(MsgOffer).Marshal(testServer)
	require.NoError(t, err)
	require.Len(t, b, 274)
	require.Equal(t, ReplyLen, len(b))

	assert.Equal(t, []byte{2, 1, 6, 0}, b[0:4])
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, b[4:8])
	assert.Equal(t, []byte{0, 0}, b[8:10], "secs")
	assert.Equal(t, []byte{0x80, 0}, b[10:12], "flags")
	assert.Equal(t, []byte{0, 0, 0, 0}, b[12:16], "ciaddr")
	assert.Equal(t, []byte{192, 168, 1, 50}, b[16:20], "yiaddr")
	assert.Equal(t, []byte{192, 168, 1, 1}, b[20:24], "siaddr")
	assert.Equal(t, []byte{0, 0, 0, 0}, b[24:28], "giaddr")
	assert.Equal(t, []byte(testMAC), b[28:34])
	assert.Equal(t, make([]byte, 10), b[34:44], "chaddr padding")
	assert.Equal(t, make([]byte, 192), b[44:236], "sname and file")
	assert.Equal(t, []byte{99, 130, 83, 99}, b[236:240])

	wantOpts := []byte{
		53, 1, 2,
		54, 4, 192, 168, 1, 1,
		1, 4, 255, 255, 255, 0,
		3, 4, 192, 168, 1, 254,
		6, 4, 8, 8, 8, 8,
		51, 4, 0, 0, 0x70, 0x80,
		255,
	}
	assert.Equal(t, wantOpts, b[240:])
}

func TestReplyOptionsRescan(t *testing.T) {
	for _, mt := range []MessageType{MsgOffer, MsgAck} {
		t.Run(mt.String(), func(t *testing.T) {
			b, err := testReply(mt).Marshal(testServer)
			require.NoError(t, err)

			// The same walk Decode does, minus the opcode check.
			var got MessageType
			err = WalkOptions(b[optionsStart:], func(tag byte, value []byte) bool {
				if tag == OptMessageType && len(value) == 1 {
					got = MessageType(value[0])
					return true
				}
				return false
			})
			require.NoError(t, err)
			assert.Equal(t, mt, got)

			opts, err := ParseOptions(b[optionsStart:])
			require.NoError(t, err)
			for tag, want := range map[int]net.IP{
				OptServerIdentifier: testServer.ServerAddr,
				OptSubnetMask:       testServer.SubnetMask,
				OptRouter:           testServer.Router,
				OptDNSServers:       testServer.DNS,
			} {
				assert.Equal(t, []byte(want.To4()), opts[tag], "option %d", tag)
			}
			lt, ok := opts.Uint32(OptLeaseTime)
			require.True(t, ok)
			assert.Equal(t, uint32(28800), lt)
		})
	}
}

func TestReplyForeignParser(t *testing.T) {
	b, err := testReply(MsgAck).Marshal(testServer)
	require.NoError(t, err)

	d, err := dhcpv4.FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.OpcodeBootReply, d.OpCode)
	assert.Equal(t, dhcpv4.MessageTypeAck, d.MessageType())
	assert.Equal(t, dhcpv4.TransactionID{0x12, 0x34, 0x56, 0x78}, d.TransactionID)
	assert.True(t, d.IsBroadcast())
	assert.True(t, d.YourIPAddr.Equal(net.ParseIP("192.168.1.50")))
	assert.True(t, d.ServerIdentifier().Equal(testServer.ServerAddr))
	assert.Equal(t, testMAC, d.ClientHWAddr)
	assert.Equal(t, 8*time.Hour, d.IPAddressLeaseTime(0))
}

func TestReplyMarshalErrors(t *testing.T) {
	r := testReply(MsgDiscover)
	_, err := r.Marshal(testServer)
	assert.Error(t, err)

	r = testReply(MsgOffer)
	r.YourAddr = net.ParseIP("2001:db8::1")
	_, err = r.Marshal(testServer)
	assert.Error(t, err)

	r = testReply(MsgOffer)
	r.HardwareAddr = net.HardwareAddr{1, 2, 3}
	_, err = r.Marshal(testServer)
	assert.Error(t, err)

	_, err = testReply(MsgOffer).Marshal(&ServerInfo{ServerAddr: net.ParseIP("192.168.1.1")})
	assert.Error(t, err)

	_, err = testReply(MsgOffer).Marshal(nil)
	assert.Error(t, err)
}

func TestNewReply(t *testing.T) {
	req := &Request{TransactionID: [4]byte{9, 8, 7, 6}, HardwareAddr: testMAC, Type: MsgRequest}
	r := NewReply(req, MsgAck, net.ParseIP("10.0.0.7"))
	assert.Equal(t, req.TransactionID, r.TransactionID)
	assert.Equal(t, MsgAck, r.Type)
	assert.Equal(t, testMAC, r.HardwareAddr)
	assert.Equal(t, req.XID(), r.XID())
	assert.Equal(t, uint32(0x09080706), r.XID())
}

func TestDecodeReply(t *testing.T) {
	b, err := testReply(MsgAck).Marshal(testServer)
	require.NoError(t, err)

	r, err := DecodeReply(b)
	require.NoError(t, err)
	assert.Equal(t, testReply(MsgAck).TransactionID, r.TransactionID)
	assert.Equal(t, uint32(0x12345678), r.XID())
	assert.Equal(t, MsgAck, r.Type)
	assert.Equal(t, testMAC, r.HardwareAddr)
	assert.Equal(t, "192.168.1.50", r.YourAddr.String())

	_, err = DecodeReply(b[:200])
	assert.ErrorIs(t, err, ErrShortPacket)

	req := padTo(rawRequest([4]byte{1, 2, 3, 4}, testMAC, OptMessageType, 1, byte(MsgDiscover), OptEnd), 300)
	_, err = DecodeReply(req)
	assert.ErrorIs(t, err, ErrNotReply)

	b[headerLen] = 0
	_, err = DecodeReply(b)
	assert.ErrorIs(t, err, ErrBadMagic)
}
