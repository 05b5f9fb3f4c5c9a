package utils

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SpinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slots_spins_total",
			Help: "Settled spins by outcome",
		},
		[]string{"outcome"},
	)

	GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slots_gateway_errors_total",
			Help: "Failed economy service calls",
		},
		[]string{"op", "kind"},
	)

	PanelsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slots_panels_active",
			Help: "Panels with a live controller",
		},
	)

	FrameEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slots_frame_edits_total",
			Help: "Panel message edits by result",
		},
		[]string{"result"},
	)

	FrameEditLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slots_frame_edit_seconds",
			Help:    "Latency of panel message edits",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var metricsOnce sync.Once

// InitMetrics registers collectors with the default registry
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(SpinsTotal, GatewayErrors, PanelsActive, FrameEdits, FrameEditLatency)
	})
}
