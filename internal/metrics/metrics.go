// Package metrics exposes Prometheus collectors for the sync server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BroadcastsTotal counts frames published per topic scope ("event" or
	// "admin").
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpot_broadcasts_total",
		Help: "Number of frames published to topics.",
	}, []string{"scope"})

	// DroppedFramesTotal counts frames dropped because a subscriber buffer
	// was full.
	DroppedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpot_dropped_frames_total",
		Help: "Number of frames dropped due to slow subscribers.",
	})

	// ConnectedClients tracks the number of open websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "splitpot_connected_clients",
		Help: "Number of currently connected websocket clients.",
	})

	// CommandsTotal counts processed commands by name and reply status.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpot_commands_total",
		Help: "Number of processed client commands.",
	}, []string{"command", "status"})

	// HTTPRequestDuration observes REST endpoint latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitpot_http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
