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

// Package responder answers DHCP DISCOVER and REQUEST broadcasts on a
// local segment with addresses from a fixed pool.
package responder

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metal-stack/fielddhcp/api"
	"github.com/metal-stack/fielddhcp/dhcp4"
	"github.com/metal-stack/fielddhcp/lease"
	"github.com/metal-stack/fielddhcp/pcap"
)

var (
	// ErrInvalidConfig is wrapped by every configuration error New
	// returns.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrStopTimeout is returned by Stop when the receive loop did not
	// finish in time. The loop still exits on its own.
	ErrStopTimeout = errors.New("timed out waiting for the receive loop to finish")
)

const stopTimeout = 500 * time.Millisecond

// packetConn is the part of *dhcp4.Conn the receive loop uses.
type packetConn interface {
	Recv([]byte) ([]byte, *net.UDPAddr, error)
	SendTo([]byte, *net.UDPAddr) error
	LocalAddr() *net.UDPAddr
	Close() error
}

func listenDHCP(addr string, intf *net.Interface) (packetConn, error) {
	return dhcp4.NewConn(addr, intf)
}

// Responder is a single DHCP responder instance. Its lease table lives
// as long as the Responder, across Stop and Start.
type Responder struct {
	id     string
	log    *zap.SugaredLogger
	notify func(msg string)

	info       dhcp4.ServerInfo
	pool       *lease.Pool
	listenAddr string
	replyAddr  *net.UDPAddr
	ifname     string
	trace      *pcap.Writer

	listen func(addr string, intf *net.Interface) (packetConn, error)

	// mu guards the lifecycle fields below. worker is held by the
	// receive loop for as long as it runs, so a loop that outlived a
	// timed out Stop never shares the pool with its successor.
	mu      sync.Mutex
	worker  sync.Mutex
	running atomic.Bool
	conn    packetConn
	done    chan struct{}
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger sets the structured logger. The default discards
// everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Responder) {
		r.log = log
	}
}

// WithNotify sets the callback receiving human readable status lines.
// It is called from the receive loop and must not block for long.
func WithNotify(fn func(msg string)) Option {
	return func(r *Responder) {
		r.notify = fn
	}
}

// WithListenAddr overrides the UDP ip:port to bind.
func WithListenAddr(addr string) Option {
	return func(r *Responder) {
		r.listenAddr = addr
	}
}

// WithReplyAddr overrides where replies are sent.
func WithReplyAddr(addr *net.UDPAddr) Option {
	return func(r *Responder) {
		r.replyAddr = addr
	}
}

// WithInterface binds the responder to the named network interface.
func WithInterface(name string) Option {
	return func(r *Responder) {
		r.ifname = name
	}
}

// WithTrace writes every datagram received and sent to w, as a pcap
// capture of raw IPv4 packets.
func WithTrace(w io.Writer) Option {
	return func(r *Responder) {
		if w == nil {
			r.trace = nil
			return
		}
		r.trace = &pcap.Writer{
			Writer:   w,
			LinkType: pcap.LinkRaw,
			SnapLen:  65535,
		}
	}
}

// New validates cfg and returns an idle Responder with an empty lease
// table.
func New(cfg api.Config, opts ...Option) (*Responder, error) {
	var (
		info       dhcp4.ServerInfo
		start, end net.IP
	)
	for _, f := range []struct {
		name  string
		value string
		dst   *net.IP
	}{
		{"server address", cfg.ServerAddress, &info.ServerAddr},
		{"pool start", cfg.PoolStart, &start},
		{"pool end", cfg.PoolEnd, &end},
		{"subnet mask", cfg.SubnetMask, &info.SubnetMask},
		{"router", cfg.Router, &info.Router},
		{"DNS server", cfg.DNS, &info.DNS},
	} {
		ip, err := parseIPv4(f.name, f.value)
		if err != nil {
			return nil, err
		}
		*f.dst = ip
	}

	pool, err := lease.New(start, end, dhcp4.LeaseDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	r := &Responder{
		id:         uuid.NewString(),
		log:        zap.NewNop().Sugar(),
		info:       info,
		pool:       pool,
		listenAddr: cfg.ListenAddr,
		replyAddr:  dhcp4.BroadcastAddr,
		ifname:     cfg.Interface,
		listen:     listenDHCP,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("responder", r.id)

	if pool.Size() == 0 {
		r.log.Warnw("pool range is empty or leaves the /24 of its start address, most requests will go unanswered",
			"start", start, "end", end)
	}
	return r, nil
}

func parseIPv4(field, s string) (net.IP, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %s %q is not an IPv4 address", ErrInvalidConfig, field, s)
	}
	return ip, nil
}

// ID returns the identifier attached to every log line of this
// responder.
func (r *Responder) ID() string {
	return r.id
}

// Start binds the DHCP socket and starts the receive loop. It does
// nothing if the responder is already running. Bind errors are
// returned, nothing is started in that case.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil
	}

	var intf *net.Interface
	if r.ifname != "" {
		i, err := net.InterfaceByName(r.ifname)
		if err != nil {
			return fmt.Errorf("looking up interface %q: %w", r.ifname, err)
		}
		intf = i
	}
	conn, err := r.listen(r.listenAddr, intf)
	if err != nil {
		return fmt.Errorf("binding DHCP socket: %w", err)
	}

	port := dhcp4.ServerPort
	if a := conn.LocalAddr(); a != nil {
		port = a.Port
	}
	r.log.Infow("starting DHCP responder", "addr", conn.LocalAddr(), "interface", r.ifname)
	r.notifyf("DHCP server started on UDP port %d.", port)

	r.conn = conn
	r.done = make(chan struct{})
	r.running.Store(true)
	go r.serve(conn, r.done)
	return nil
}

// Stop closes the socket and waits a short while for the receive loop
// to finish. It is safe to call at any time, and never blocks for
// longer than the wait.
func (r *Responder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Swap(false) {
		return nil
	}

	if err := r.conn.Close(); err != nil {
		r.log.Debugw("closing DHCP socket", "error", err)
	}

	var err error
	select {
	case <-r.done:
	case <-time.After(stopTimeout):
		r.log.Warnw("receive loop did not finish in time", "timeout", stopTimeout)
		err = ErrStopTimeout
	}
	r.conn = nil
	r.done = nil

	r.log.Infow("stopped DHCP responder")
	r.notifyf("DHCP server stopped.")
	return err
}

// Running reports whether the receive loop is active.
func (r *Responder) Running() bool {
	return r.running.Load()
}

func (r *Responder) notifyf(format string, args ...interface{}) {
	if r.notify == nil {
		return
	}
	r.notify(fmt.Sprintf(format, args...))
}
