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

package responder

import (
	"errors"
	"net"
	"time"

	"github.com/metal-stack/fielddhcp/dhcp4"
	"github.com/metal-stack/fielddhcp/lease"
	"github.com/metal-stack/fielddhcp/pcap"
)

// Large enough for any datagram on an ethernet segment, even with
// jumbo frames.
const recvBufferSize = 9000

func (r *Responder) serve(conn packetConn, done chan struct{}) {
	defer close(done)

	r.worker.Lock()
	defer r.worker.Unlock()

	buf := make([]byte, recvBufferSize)
	for {
		b, src, err := conn.Recv(buf)
		if err != nil {
			if !r.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			transportErrors.WithLabelValues("receive").Inc()
			r.log.Errorw("receiving DHCP packet", "error", err)
			r.notifyf("Error in receive loop: %s", err)
			continue
		}
		packetsReceived.Inc()
		r.tracePacket(src, conn.LocalAddr(), b)
		r.handle(conn, b)
	}
}

func (r *Responder) handle(conn packetConn, b []byte) {
	req, err := dhcp4.Decode(b)
	if err != nil {
		packetsDropped.WithLabelValues(dropReason(err)).Inc()
		if errors.Is(err, dhcp4.ErrBadMagic) {
			r.notifyf("Invalid DHCP magic cookie, ignoring.")
		}
		r.log.Debugw("ignoring packet", "error", err)
		return
	}

	var replyType dhcp4.MessageType
	switch req.Type {
	case dhcp4.MsgDiscover:
		replyType = dhcp4.MsgOffer
		r.notifyf("DISCOVER from %s", req.HardwareAddr)
	case dhcp4.MsgRequest:
		replyType = dhcp4.MsgAck
		r.notifyf("REQUEST from %s", req.HardwareAddr)
	default:
		packetsDropped.WithLabelValues("type").Inc()
		r.log.Debugw("ignoring packet", "type", req.Type, "mac", req.HardwareAddr)
		return
	}
	r.log.Debugw("got request", "type", req.Type, "mac", req.HardwareAddr, "xid", req.XID())

	ip, assigned, err := r.pool.Acquire(req.HardwareAddr)
	leasesActive.Set(float64(r.pool.Active()))
	if err != nil {
		if errors.Is(err, lease.ErrPoolExhausted) {
			poolExhausted.Inc()
		}
		r.log.Warnw("no address for client", "mac", req.HardwareAddr, "error", err)
		r.notifyf("No free address for %s: %s", req.HardwareAddr, err)
		return
	}
	if assigned {
		r.log.Infow("assigned lease", "mac", req.HardwareAddr, "ip", ip)
		r.notifyf("Assigned lease %s to %s", ip, req.HardwareAddr)
	}

	resp, err := dhcp4.NewReply(req, replyType, ip).Marshal(&r.info)
	if err != nil {
		r.log.Errorw("building reply", "type", replyType, "mac", req.HardwareAddr, "error", err)
		return
	}
	if err = conn.SendTo(resp, r.replyAddr); err != nil {
		transportErrors.WithLabelValues("send").Inc()
		r.log.Errorw("sending reply", "type", replyType, "mac", req.HardwareAddr, "error", err)
		r.notifyf("Failed to send %s to %s: %s", replyType, req.HardwareAddr, err)
		return
	}
	repliesSent.WithLabelValues(replyType.String()).Inc()

	src := &net.UDPAddr{IP: r.info.ServerAddr, Port: dhcp4.ServerPort}
	if a := conn.LocalAddr(); a != nil {
		src.Port = a.Port
	}
	r.tracePacket(src, r.replyAddr, resp)
	r.notifyf("Sent %s → %s", replyType, ip)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, dhcp4.ErrShortPacket):
		return "short"
	case errors.Is(err, dhcp4.ErrNotRequest):
		return "op"
	case errors.Is(err, dhcp4.ErrBadMagic):
		return "magic"
	default:
		return "malformed"
	}
}

func (r *Responder) tracePacket(src, dst *net.UDPAddr, b []byte) {
	if r.trace == nil {
		return
	}
	pkt, err := pcap.UDPPacket(time.Now(), src, dst, b)
	if err != nil {
		r.log.Debugw("not tracing packet", "error", err)
		return
	}
	if err = r.trace.Put(pkt); err != nil {
		r.log.Warnw("writing packet trace", "error", err)
	}
}
