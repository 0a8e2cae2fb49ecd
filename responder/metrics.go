package responder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fielddhcp_packets_received_total",
			Help: "total number of datagrams received on the DHCP socket",
		},
	)

	// reason is one of short, op, magic, malformed or type.
	packetsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fielddhcp_packets_dropped_total",
			Help: "total number of received datagrams that were not answered",
		},
		[]string{"reason"},
	)

	repliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fielddhcp_replies_sent_total",
			Help: "total number of OFFER and ACK replies sent",
		},
		[]string{"type"},
	)

	poolExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fielddhcp_pool_exhausted_total",
			Help: "total number of requests dropped because no address was free",
		},
	)

	// op is receive or send.
	transportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fielddhcp_transport_errors_total",
			Help: "total number of socket errors while running",
		},
		[]string{"op"},
	)

	leasesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fielddhcp_leases_active",
			Help: "current number of unexpired leases",
		},
	)
)
