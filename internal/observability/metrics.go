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
			Namespace: "bridgectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bridgectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	bridgeCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bridgectl",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands acknowledged on the register window.",
		},
		[]string{"kind", "result"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bridgectl",
			Subsystem: "bridge",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time spent in external tools per command.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)
	ackWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bridgectl",
			Subsystem: "bridge",
			Name:      "ack_wait_seconds",
			Help:      "Time between asserting done and the host clearing valid.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	ackStalled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bridgectl",
			Subsystem: "bridge",
			Name:      "ack_stalled",
			Help:      "1 while the host has not cleared valid past the warning threshold.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bridgeCommands, dispatchDuration, ackWait, ackStalled)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand counts one acknowledged command. result is "ok", "failed"
// or "unknown".
func RecordCommand(kind, result string, dispatch time.Duration, invoked bool) {
	RegisterMetrics()
	bridgeCommands.WithLabelValues(kind, result).Inc()
	if invoked {
		dispatchDuration.WithLabelValues(kind).Observe(dispatch.Seconds())
	}
}

func RecordAckWait(d time.Duration) {
	RegisterMetrics()
	ackWait.Observe(d.Seconds())
}

func SetAckStalled(stalled bool) {
	RegisterMetrics()
	v := 0.0
	if stalled {
		v = 1
	}
	ackStalled.Set(v)
}
