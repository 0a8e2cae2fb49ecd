package pcap

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// UDPPacket wraps payload in IPv4 and UDP headers, for a LinkRaw
// capture.
func UDPPacket(ts time.Time, src, dst *net.UDPAddr, payload []byte) (*Packet, error) {
	srcIP, dstIP := addrIP(src), addrIP(dst)
	if srcIP == nil || dstIP == nil {
		return nil, fmt.Errorf("cannot trace %s -> %s, not IPv4", src, dst)
	}

	ip := &layers.IPv4{
		Version:  4,
		TOS:      0xc0, // DSCP CS6 (Network Control)
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port),
		DstPort: layers.UDPPort(dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serializing traced packet: %w", err)
	}

	b := buf.Bytes()
	return &Packet{
		Timestamp: ts,
		Length:    len(b),
		Bytes:     b,
	}, nil
}

// UDPPayload decodes the link, IPv4 and UDP headers of pkt and returns
// the UDP endpoints and payload.
func UDPPayload(lt LinkType, pkt *Packet) (src, dst *net.UDPAddr, payload []byte, err error) {
	var first gopacket.LayerType
	switch lt {
	case LinkEthernet:
		first = layers.LayerTypeEthernet
	case LinkRaw:
		first = layers.LayerTypeIPv4
	default:
		return nil, nil, nil, fmt.Errorf("unsupported link type %d", lt)
	}

	var (
		eth     layers.Ethernet
		ip      layers.IPv4
		udp     layers.UDP
		decoded []gopacket.LayerType
	)
	parser := gopacket.NewDecodingLayerParser(first, &eth, &ip, &udp)
	var unsupported gopacket.UnsupportedLayerType
	if err := parser.DecodeLayers(pkt.Bytes, &decoded); err != nil && !errors.As(err, &unsupported) {
		return nil, nil, nil, fmt.Errorf("decoding packet: %w", err)
	}
	if parser.Truncated {
		return nil, nil, nil, errors.New("truncated packet")
	}

	var haveIP, haveUDP bool
	for _, t := range decoded {
		switch t {
		case layers.LayerTypeIPv4:
			haveIP = true
		case layers.LayerTypeUDP:
			haveUDP = true
		}
	}
	if !haveIP {
		return nil, nil, nil, errors.New("not an IPv4 packet")
	}
	if !haveUDP {
		return nil, nil, nil, fmt.Errorf("IP protocol %s is not UDP", ip.Protocol)
	}

	src = &net.UDPAddr{IP: append(net.IP(nil), ip.SrcIP.To4()...), Port: int(udp.SrcPort)}
	dst = &net.UDPAddr{IP: append(net.IP(nil), ip.DstIP.To4()...), Port: int(udp.DstPort)}
	return src, dst, udp.Payload, nil
}

func addrIP(a *net.UDPAddr) net.IP {
	if a == nil {
		return nil
	}
	if a.IP == nil {
		return net.IPv4zero.To4()
	}
	return a.IP.To4()
}
