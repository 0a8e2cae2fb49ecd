// Package lease hands out IPv4 addresses from a fixed range, keyed by
// client hardware address.
package lease

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrPoolExhausted is returned when no address in the range is free.
var ErrPoolExhausted = errors.New("IP pool exhausted")

// Lease binds a client hardware address to an address until Expires.
type Lease struct {
	HardwareAddr net.HardwareAddr
	IP           net.IP
	Expires      time.Time
}

// Expired reports whether the lease is no longer valid at now.
func (l *Lease) Expired(now time.Time) bool {
	return !l.Expires.After(now)
}

// Pool allocates addresses between start and end. Candidates are
// found by bumping the last octet of start, so a pool never spans
// more than the /24 start lives in.
//
// A Pool is not safe for concurrent use. If it ever gets more than
// one caller, Acquire has to become a locked check-and-reserve to
// keep two live leases off the same address.
type Pool struct {
	start    net.IP
	end      net.IP
	duration time.Duration
	leases   map[string]*Lease
	timeNow  func() time.Time
}

// New returns an empty pool for the range [start, end] whose leases
// last duration.
func New(start, end net.IP, duration time.Duration) (*Pool, error) {
	s, e := start.To4(), end.To4()
	if s == nil {
		return nil, fmt.Errorf("pool start %q is not an IPv4 address", start)
	}
	if e == nil {
		return nil, fmt.Errorf("pool end %q is not an IPv4 address", end)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("lease duration must be positive, got %s", duration)
	}
	return &Pool{
		start:    cloneIP(s),
		end:      cloneIP(e),
		duration: duration,
		leases:   make(map[string]*Lease),
		timeNow:  time.Now,
	}, nil
}

// Acquire returns the address leased to id, creating a lease if id
// has none or its lease expired. assigned is true when a new lease
// was recorded.
//
// On ErrPoolExhausted the lease table is left untouched.
func (p *Pool) Acquire(id net.HardwareAddr) (ip net.IP, assigned bool, err error) {
	now := p.timeNow()
	key := string(id)

	if l, ok := p.leases[key]; ok && !l.Expired(now) {
		return cloneIP(l.IP), false, nil
	}

	candidate := cloneIP(p.start)
	for p.inUse(candidate, now) {
		candidate[3]++
		if candidate[3] == 0 || compareIP(candidate, p.end) > 0 {
			return nil, false, ErrPoolExhausted
		}
	}

	p.leases[key] = &Lease{
		HardwareAddr: append(net.HardwareAddr(nil), id...),
		IP:           candidate,
		Expires:      now.Add(p.duration),
	}
	return cloneIP(candidate), true, nil
}

// Active returns the number of unexpired leases.
func (p *Pool) Active() int {
	now := p.timeNow()
	n := 0
	for _, l := range p.leases {
		if !l.Expired(now) {
			n++
		}
	}
	return n
}

// Leases returns a copy of every lease in the table, expired or not.
func (p *Pool) Leases() []Lease {
	ret := make([]Lease, 0, len(p.leases))
	for _, l := range p.leases {
		ret = append(ret, Lease{
			HardwareAddr: append(net.HardwareAddr(nil), l.HardwareAddr...),
			IP:           cloneIP(l.IP),
			Expires:      l.Expires,
		})
	}
	return ret
}

// Size is the number of addresses the pool can hand out, or 0 if the
// range is empty or leaves the start address' /24.
func (p *Pool) Size() int {
	if !bytes.Equal(p.start[:3], p.end[:3]) || p.start[3] > p.end[3] {
		return 0
	}
	return int(p.end[3]-p.start[3]) + 1
}

func (p *Pool) inUse(ip net.IP, now time.Time) bool {
	for _, l := range p.leases {
		if !l.Expired(now) && l.IP.Equal(ip) {
			return true
		}
	}
	return false
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

// compareIP compares two 4-byte addresses octet by octet.
func compareIP(a, b net.IP) int {
	return bytes.Compare(a, b)
}
