package echo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered on a per-Server registry so that several servers can
// live in one process.
type metrics struct {
	registry *prometheus.Registry

	envelopes    *prometheus.CounterVec
	envelopeSize *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		envelopes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sealpost",
				Subsystem: "echo",
				Name:      "envelopes_total",
				Help:      "Envelopes received by the echo server, by format and result.",
			}, []string{"format", "result"}),
		envelopeSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sealpost",
				Subsystem: "echo",
				Name:      "envelope_size_bytes",
				Help:      "Size of the envelopes opened by the echo server.",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			}, []string{"format"}),
	}

	m.registry.MustRegister(m.envelopes, m.envelopeSize)

	return m
}
