package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sealdrop"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	wireRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "requests_total",
			Help:      "Wire requests by request code and response code.",
		},
		[]string{"request", "response"},
	)
	wireDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "request_duration_seconds",
			Help:      "Time from accept to response write, by request code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"request"},
	)
	activeConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wire",
			Name:      "active_connections",
			Help:      "Connections currently being served.",
		},
	)
	chunkBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "chunk_bytes_total",
			Help:      "Ciphertext bytes appended to pending buffers.",
		},
	)
	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "completed_total",
			Help:      "Terminal chunks by outcome.",
		},
		[]string{"result"},
	)
	verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "checksum_verdicts_total",
			Help:      "Client checksum verdicts by outcome code.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			wireRequests, wireDuration, activeConns,
			chunkBytes, transfers, verdicts,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordWireRequest(request, response string, duration time.Duration) {
	RegisterMetrics()
	wireRequests.WithLabelValues(request, response).Inc()
	wireDuration.WithLabelValues(request).Observe(duration.Seconds())
}

func ConnOpened() {
	RegisterMetrics()
	activeConns.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	activeConns.Dec()
}

func RecordChunk(n int) {
	RegisterMetrics()
	chunkBytes.Add(float64(n))
}

func RecordTransfer(success bool) {
	RegisterMetrics()
	result := "ok"
	if !success {
		result = "failed"
	}
	transfers.WithLabelValues(result).Inc()
}

func RecordVerdict(outcome string) {
	RegisterMetrics()
	verdicts.WithLabelValues(outcome).Inc()
}
