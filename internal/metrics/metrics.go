// Package metrics holds the bridge's Prometheus collectors. They are
// registered on the default registry and served by the management HTTP
// server under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks currently open reader sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardbridge_active_sessions",
		Help: "Number of open reader sessions.",
	})

	// FramesIn counts decoded inbound frames by command kind.
	FramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbridge_frames_in_total",
		Help: "Inbound frames by command kind.",
	}, []string{"kind"})

	// FramesOut counts response frames written back to clients.
	FramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_frames_out_total",
		Help: "Outbound response frames.",
	})

	// DecodeFailures counts connection-fatal frame decode errors.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_decode_failures_total",
		Help: "Malformed inbound frames that closed their session.",
	})

	// WarmupShortCircuits counts APDUs answered by the warm-up placeholder.
	WarmupShortCircuits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_warmup_short_circuits_total",
		Help: "Command APDUs answered during the warm-up window.",
	})

	// BackendErrors counts ProcessAPDU failures replaced by the fallback.
	BackendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_backend_errors_total",
		Help: "Card backend failures masked by the fallback response.",
	})
)
