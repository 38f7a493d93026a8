package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for inference results.
const (
	OutcomeSmile   = "smile"
	OutcomeNoSmile = "no_smile"
	OutcomeNoFace  = "no_face"
	OutcomeError   = "error"
)

// Metrics holds the inference collectors on a private registry.
type Metrics struct {
	// Detections currently running against the landmark provider
	InFlight atomic.Int64

	inferences     *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	detectDuration prometheus.Histogram
	scores         prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smile_inferences_total",
			Help: "Inference requests by outcome",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smile_landmark_cache_lookups_total",
			Help: "Landmark cache lookups by result",
		}, []string{"result"}),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smile_landmark_detect_seconds",
			Help:    "Time spent in the landmark provider",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smile_score",
			Help:    "Distribution of smile scores for detected faces",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.2, 2.5, 3, 4, 6, 10},
		}),
	}

	m.registry.MustRegister(m.inferences, m.cacheLookups, m.detectDuration, m.scores)
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "smile_landmark_detections_in_flight",
			Help: "Landmark detections currently running",
		},
		func() float64 { return float64(m.InFlight.Load()) },
	))

	return m
}

// ObserveInference records one finished inference.
func (m *Metrics) ObserveInference(outcome string, score float64) {
	m.inferences.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSmile || outcome == OutcomeNoSmile {
		m.scores.Observe(score)
	}
}

// ObserveDetect records the duration of one provider call.
func (m *Metrics) ObserveDetect(d time.Duration) {
	m.detectDuration.Observe(d.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer returns an HTTP server exposing /metrics on addr.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
