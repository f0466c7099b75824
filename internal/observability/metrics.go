package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iggywire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "decode",
			Name:      "frames_total",
			Help:      "Complete frames extracted.",
		},
		[]string{"node", "direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "decode",
			Name:      "frame_bytes_total",
			Help:      "Wire bytes of complete frames.",
		},
		[]string{"node", "direction"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "decode",
			Name:      "messages_total",
			Help:      "Decoded messages by command and status.",
		},
		[]string{"node", "direction", "command", "status"},
	)
	faultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "decode",
			Name:      "faults_total",
			Help:      "Decode and correlation faults by kind.",
		},
		[]string{"node", "direction", "kind"},
	)
	unknownCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "decode",
			Name:      "unknown_commands_total",
			Help:      "Requests whose command code is not in the catalog.",
		},
		[]string{"node"},
	)
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "iggywire",
			Subsystem: "tap",
			Name:      "sessions_active",
			Help:      "Open tap sessions.",
		},
		[]string{"node"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iggywire",
			Subsystem: "tap",
			Name:      "sessions_total",
			Help:      "Accepted tap sessions.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesTotal, frameBytes, messagesTotal, faultsTotal, unknownCommands,
			sessionsActive, sessionsTotal,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionOpened(node string) {
	RegisterMetrics()
	sessionsTotal.WithLabelValues(node).Inc()
	sessionsActive.WithLabelValues(node).Inc()
}

func RecordSessionClosed(node string) {
	RegisterMetrics()
	sessionsActive.WithLabelValues(node).Dec()
}
