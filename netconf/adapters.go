// Package netconf lists the network adapters a responder can serve and
// prepares one of them by giving it the static server address.
package netconf

import (
	"fmt"
	"net"
)

// Adapter is a network interface suitable for serving DHCP.
type Adapter struct {
	Name         string
	Index        int
	HardwareAddr net.HardwareAddr
	// Addrs holds the IPv4 addresses currently configured.
	Addrs []*net.IPNet
}

// Adapters returns the interfaces that are up and are neither
// loopback nor point-to-point tunnels.
func Adapters() ([]Adapter, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	return filterAdapters(ifs, func(i *net.Interface) ([]net.Addr, error) {
		return i.Addrs()
	})
}

func filterAdapters(ifs []net.Interface, addrs func(*net.Interface) ([]net.Addr, error)) ([]Adapter, error) {
	var ret []Adapter
	for i := range ifs {
		intf := &ifs[i]
		if intf.Flags&net.FlagUp == 0 || intf.Flags&(net.FlagLoopback|net.FlagPointToPoint) != 0 {
			continue
		}
		as, err := addrs(intf)
		if err != nil {
			return nil, fmt.Errorf("addresses of %s: %w", intf.Name, err)
		}
		a := Adapter{
			Name:         intf.Name,
			Index:        intf.Index,
			HardwareAddr: intf.HardwareAddr,
		}
		for _, addr := range as {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			a.Addrs = append(a.Addrs, ipnet)
		}
		ret = append(ret, a)
	}
	return ret, nil
}

// HasAddress reports whether ip is configured on the adapter.
func (a *Adapter) HasAddress(ip net.IP) bool {
	for _, n := range a.Addrs {
		if n.IP.Equal(ip) {
			return true
		}
	}
	return false
}
