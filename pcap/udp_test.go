package pcap

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPPacketRoundTrip(t *testing.T) {
	src := &net.UDPAddr{IP: net.ParseIP("192.168.1.1"), Port: 67}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: 68}
	payload := []byte("not really dhcp")

	pkt, err := UDPPacket(time.Unix(10, 0), src, dst, payload)
	require.NoError(t, err)
	assert.Equal(t, 20+8+len(payload), pkt.Length)

	decoded := gopacket.NewPacket(pkt.Bytes, layers.LayerTypeIPv4, gopacket.Default)
	ip, ok := decoded.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, uint8(0xc0), ip.TOS)
	assert.Equal(t, uint8(64), ip.TTL)
	assert.Equal(t, uint16(0xffff), onesComplementSum(pkt.Bytes[:20]), "IPv4 header checksum does not verify")
	udp, ok := decoded.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	assert.NotZero(t, udp.Checksum)
	assert.Equal(t, uint16(8+len(payload)), udp.Length)

	var b bytes.Buffer
	w := &Writer{Writer: &b, LinkType: LinkRaw, SnapLen: 1500}
	require.NoError(t, w.Put(pkt))
	r, err := NewReader(&b)
	require.NoError(t, err)
	require.True(t, r.Next())

	gotSrc, gotDst, gotPayload, err := UDPPayload(r.LinkType, r.Packet())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1:67", gotSrc.String())
	assert.Equal(t, "255.255.255.255:68", gotDst.String())
	assert.Equal(t, payload, gotPayload)
}

func TestUDPPacketUnspecifiedSource(t *testing.T) {
	pkt, err := UDPPacket(time.Now(), &net.UDPAddr{Port: 67}, &net.UDPAddr{IP: net.IPv4bcast, Port: 68}, nil)
	require.NoError(t, err)
	src, _, _, err := UDPPayload(LinkRaw, pkt)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:67", src.String())
}

func TestUDPPacketRejectsIPv6(t *testing.T) {
	_, err := UDPPacket(time.Now(), &net.UDPAddr{IP: net.ParseIP("::1"), Port: 1}, &net.UDPAddr{IP: net.IPv4bcast, Port: 68}, nil)
	assert.Error(t, err)
}

func TestUDPPayloadEthernet(t *testing.T) {
	pkt, err := UDPPacket(time.Now(), &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 68}, &net.UDPAddr{IP: net.IPv4bcast, Port: 67}, []byte{7})
	require.NoError(t, err)

	frame := append(make([]byte, 12), 0x08, 0x00)
	frame = append(frame, pkt.Bytes...)
	_, dst, payload, err := UDPPayload(LinkEthernet, &Packet{Bytes: frame})
	require.NoError(t, err)
	assert.Equal(t, 67, dst.Port)
	assert.Equal(t, []byte{7}, payload)

	frame[12] = 0x86
	frame[13] = 0xdd
	_, _, _, err = UDPPayload(LinkEthernet, &Packet{Bytes: frame})
	assert.Error(t, err)
}

func TestUDPPayloadRejects(t *testing.T) {
	pkt, err := UDPPacket(time.Now(), &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 68}, &net.UDPAddr{IP: net.IPv4bcast, Port: 67}, []byte{1, 2, 3})
	require.NoError(t, err)

	tcp := append([]byte(nil), pkt.Bytes...)
	tcp[9] = 6
	_, _, _, err = UDPPayload(LinkRaw, &Packet{Bytes: tcp})
	assert.Error(t, err)

	_, _, _, err = UDPPayload(LinkRaw, &Packet{Bytes: pkt.Bytes[:len(pkt.Bytes)-1]})
	assert.Error(t, err)

	_, _, _, err = UDPPayload(LinkType(147), pkt)
	assert.Error(t, err)
}

func onesComplementSum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return uint16(sum)
}
