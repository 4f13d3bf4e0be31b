package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames read from producer connections.",
		},
		[]string{"domain"},
	)
	rejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "relay",
			Name:      "rejects_total",
			Help:      "Frames rejected at the decode/validation boundary.",
		},
		[]string{"reason"},
	)
	dispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "relay",
			Name:      "dispatched_total",
			Help:      "Messages dispatched to a topic.",
		},
		[]string{"topic"},
	)
	unroutable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "relay",
			Name:      "unroutable_total",
			Help:      "Validated messages with no topic binding.",
		},
		[]string{"domain"},
	)
	sinkSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "sink",
			Name:      "sends_total",
			Help:      "Sink send attempts by outcome.",
		},
		[]string{"sink", "outcome"},
	)
	sinkDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "sink",
			Name:      "drops_total",
			Help:      "Messages dropped by backpressure policy.",
		},
		[]string{"sink", "policy"},
	)
	sinkSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alphapulse",
			Subsystem: "sink",
			Name:      "send_duration_seconds",
			Help:      "Sink send duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
	sinkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "alphapulse",
			Subsystem: "sink",
			Name:      "connection_state",
			Help:      "Sink connection state (0=disconnected 1=connecting 2=connected 3=degraded).",
		},
		[]string{"sink"},
	)
	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "sink",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"sink", "state"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphapulse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alphapulse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesIn, rejects, dispatched, unroutable,
			sinkSends, sinkDrops, sinkSendDuration, sinkState, breakerTransitions,
			httpRequests, httpDuration,
		)
	})
}

func RecordFrame(domain string) {
	RegisterMetrics()
	framesIn.WithLabelValues(domain).Inc()
}

func RecordReject(reason string) {
	RegisterMetrics()
	rejects.WithLabelValues(reason).Inc()
}

func RecordDispatch(topic string) {
	RegisterMetrics()
	dispatched.WithLabelValues(topic).Inc()
}

func RecordUnroutable(domain string) {
	RegisterMetrics()
	unroutable.WithLabelValues(domain).Inc()
}

func RecordSinkSend(sink string, duration time.Duration, success bool) {
	RegisterMetrics()
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	sinkSends.WithLabelValues(sink, outcome).Inc()
	sinkSendDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

func RecordSinkDrop(sink, policy string) {
	RegisterMetrics()
	sinkDrops.WithLabelValues(sink, policy).Inc()
}

func RecordSinkState(sink string, state int) {
	RegisterMetrics()
	sinkState.WithLabelValues(sink).Set(float64(state))
}

func RecordBreakerTransition(sink, state string) {
	RegisterMetrics()
	breakerTransitions.WithLabelValues(sink, state).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
