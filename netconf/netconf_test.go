package netconf

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFilterAdapters(t *testing.T) {
	ifs := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Index: 2, Name: "eth0", Flags: net.FlagUp | net.FlagBroadcast},
		{Index: 3, Name: "eth1", Flags: net.FlagBroadcast},
		{Index: 4, Name: "tun0", Flags: net.FlagUp | net.FlagPointToPoint},
		{Index: 5, Name: "wlan0", Flags: net.FlagUp | net.FlagBroadcast | net.FlagMulticast},
	}
	addrs := map[string][]net.Addr{
		"eth0": {
			&net.IPNet{IP: net.ParseIP("192.168.1.1").To4(), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		},
	}

	got, err := filterAdapters(ifs, func(i *net.Interface) ([]net.Addr, error) {
		return addrs[i.Name], nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "eth0", got[0].Name)
	assert.Equal(t, 2, got[0].Index)
	require.Len(t, got[0].Addrs, 1)
	assert.True(t, got[0].HasAddress(net.ParseIP("192.168.1.1")))
	assert.False(t, got[0].HasAddress(net.ParseIP("192.168.1.2")))
	assert.Equal(t, "wlan0", got[1].Name)
	assert.Empty(t, got[1].Addrs)

	_, err = filterAdapters(ifs, func(i *net.Interface) ([]net.Addr, error) {
		return nil, errors.New("no such device")
	})
	assert.Error(t, err)
}

func TestStaticAddressCommand(t *testing.T) {
	ip := net.ParseIP("192.168.1.1")
	mask := net.IPMask(net.ParseIP("255.255.255.0").To4())

	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"ip", "addr", "replace", "192.168.1.1/24", "dev", "Ethernet 2"}},
		{"windows", []string{"netsh", "interface", "ip", "set", "address", "Ethernet 2", "static", "192.168.1.1", "255.255.255.0"}},
		{"darwin", []string{"ifconfig", "Ethernet 2", "inet", "192.168.1.1", "netmask", "255.255.255.0"}},
	}
	for _, test := range tests {
		t.Run(test.goos, func(t *testing.T) {
			got, err := staticAddressCommand(test.goos, "Ethernet 2", ip, mask)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}

	_, err := staticAddressCommand("plan9", "eth0", ip, mask)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = staticAddressCommand("linux", "", ip, mask)
	assert.Error(t, err)
	_, err = staticAddressCommand("linux", "eth0", net.ParseIP("::1"), mask)
	assert.Error(t, err)
	_, err = staticAddressCommand("linux", "eth0", ip, net.IPMask{255, 0, 255, 0})
	assert.Error(t, err)
}

func TestSetStaticAddress(t *testing.T) {
	var calls [][]string
	c := &Configurator{
		log:  zap.NewNop().Sugar(),
		goos: "linux",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return nil, nil
		},
	}
	mask := net.IPMask(net.ParseIP("255.255.255.0").To4())
	require.NoError(t, c.SetStaticAddress(context.Background(), "eth0", net.ParseIP("192.168.1.1"), mask))
	assert.Equal(t, [][]string{{"ip", "addr", "replace", "192.168.1.1/24", "dev", "eth0"}}, calls)

	c.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("RTNETLINK answers: Operation not permitted\n"), errors.New("exit status 2")
	}
	err := c.SetStaticAddress(context.Background(), "eth0", net.ParseIP("192.168.1.1"), mask)
	require.Error(t, err)
	assert.Equal(t, "ip: exit status 2: RTNETLINK answers: Operation not permitted", err.Error())
}
