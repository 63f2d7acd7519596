// Package metrics exposes Prometheus instrumentation for the progress service.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeBusy     = "busy"
	OutcomeFailed   = "failed"
	OutcomeDecoding = "undecodable"
)

// Recorder owns the service metrics and the registry they live in
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	submissions      *prometheus.CounterVec
	unlocks          *prometheus.CounterVec
	submitLatency    prometheus.Histogram
	storageFailures  prometheus.Counter
	kafkaMessages    *prometheus.CounterVec
	broadcasts       prometheus.Counter
	connectedClients prometheus.Gauge
}

// Option configures a Recorder
type Option func(*Recorder)

// WithNamespace sets the namespace of every metric
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the latency buckets, in seconds
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry registers metrics on registry instead of a fresh one
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// New creates a Recorder
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "arcade",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(r.registry)

	r.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "score_submissions_total",
		Help:      "Score submissions by game and outcome",
	}, []string{"game", "outcome"})

	r.unlocks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "achievement_unlocks_total",
		Help:      "Achievements unlocked for the first time, by id",
	}, []string{"achievement"})

	r.submitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "score_submission_duration_seconds",
		Help:      "Time spent recording a submission",
		Buckets:   r.buckets,
	})

	r.storageFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "storage_write_failures_total",
		Help:      "Writes the storage backend rejected",
	})

	r.kafkaMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "kafka_messages_total",
		Help:      "Session messages consumed from Kafka, by result",
	}, []string{"result"})

	r.broadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "leaderboard_broadcasts_total",
		Help:      "Leaderboard updates pushed to websocket subscribers",
	})

	r.connectedClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "websocket_clients",
		Help:      "Currently connected websocket clients",
	})

	return r
}

// Registry returns the registry backing r
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RecordSubmission(game, outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(game, outcome).Inc()
}

func (r *Recorder) RecordUnlocks(ids []string) {
	if r == nil {
		return
	}
	for _, id := range ids {
		r.unlocks.WithLabelValues(id).Inc()
	}
}

func (r *Recorder) ObserveSubmitLatency(d time.Duration) {
	if r == nil {
		return
	}
	r.submitLatency.Observe(d.Seconds())
}

func (r *Recorder) RecordStorageFailure() {
	if r == nil {
		return
	}
	r.storageFailures.Inc()
}

func (r *Recorder) RecordKafkaMessage(result string) {
	if r == nil {
		return
	}
	r.kafkaMessages.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordBroadcast() {
	if r == nil {
		return
	}
	r.broadcasts.Inc()
}

func (r *Recorder) SetConnectedClients(n int) {
	if r == nil {
		return
	}
	r.connectedClients.Set(float64(n))
}
