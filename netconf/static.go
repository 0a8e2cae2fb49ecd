package netconf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupported is returned on platforms where we do not know how to
// configure an address.
var ErrUnsupported = errors.New("static address configuration is not supported on this platform")

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Configurator assigns static addresses by running the platform's
// network tool. It needs administrative privileges.
type Configurator struct {
	log  *zap.SugaredLogger
	goos string
	run  runner
}

// NewConfigurator returns a Configurator for the running platform.
func NewConfigurator(log *zap.SugaredLogger) *Configurator {
	return &Configurator{
		log:  log,
		goos: runtime.GOOS,
		run:  execRunner,
	}
}

// SetStaticAddress gives adapter the address ip with the given mask,
// replacing whatever IPv4 configuration it has on platforms where the
// tool works that way.
func (c *Configurator) SetStaticAddress(ctx context.Context, adapter string, ip net.IP, mask net.IPMask) error {
	cmd, err := staticAddressCommand(c.goos, adapter, ip, mask)
	if err != nil {
		return err
	}
	c.log.Infow("setting static address", "adapter", adapter, "ip", ip, "mask", net.IP(mask).String(), "command", strings.Join(cmd, " "))

	out, err := c.run(ctx, cmd[0], cmd[1:]...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", cmd[0], err)
		}
		return fmt.Errorf("%s: %w: %s", cmd[0], err, msg)
	}
	return nil
}

func staticAddressCommand(goos, adapter string, ip net.IP, mask net.IPMask) ([]string, error) {
	if adapter == "" {
		return nil, errors.New("no adapter given")
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", ip)
	}
	ones, bits := mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("%s is not a contiguous IPv4 netmask", net.IP(mask))
	}

	switch goos {
	case "linux":
		return []string{"ip", "addr", "replace", fmt.Sprintf("%s/%d", ip4, ones), "dev", adapter}, nil
	case "windows":
		return []string{"netsh", "interface", "ip", "set", "address", adapter, "static", ip4.String(), net.IP(mask).String()}, nil
	case "darwin", "freebsd":
		return []string{"ifconfig", adapter, "inet", ip4.String(), "netmask", net.IP(mask).String()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, goos)
	}
}
