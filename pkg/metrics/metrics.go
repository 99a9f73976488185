// Package metrics provides Prometheus metrics collection and exposition for
// the invitation system.
//
// It exposes counters for invitation lifecycle operations and a histogram
// for catalog query latency. Metrics follow Prometheus naming conventions.
//
// Usage:
//
//	recorder := metrics.NewRecorder()
//	http.Handle("/metrics", recorder.Handler())
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects invitation metrics on a private registry. A nil
// Recorder is valid and records nothing, so callers can leave metrics
// unwired in tests.
type Recorder struct {
	registry *prometheus.Registry

	created        prometheus.Counter
	accepted       prometheus.Counter
	declined       prometheus.Counter
	acceptFailures *prometheus.CounterVec
	expiredDeleted prometheus.Counter
	queryDuration  *prometheus.HistogramVec
}

// Failure reasons for invitation_accept_failures_total.
const (
	ReasonExpired      = "expired"
	ReasonNoActor      = "no_actor"
	ReasonUnknownCode  = "unknown_code"
	ReasonActorFailure = "actor_failure"
)

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invitations_created_total",
			Help: "Total number of invitations added to the container",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invitations_accepted_total",
			Help: "Total number of invitations successfully accepted",
		}),
		declined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invitations_declined_total",
			Help: "Total number of acceptances declined by the actor",
		}),
		acceptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invitation_accept_failures_total",
			Help: "Total number of failed acceptance attempts by reason",
		}, []string{"reason"}),
		expiredDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invitations_expired_deleted_total",
			Help: "Total number of expired invitations removed by cleanup",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invitation_query_duration_seconds",
			Help:    "Catalog query latency by query kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
	}

	registry.MustRegister(
		r.created,
		r.accepted,
		r.declined,
		r.acceptFailures,
		r.expiredDeleted,
		r.queryDuration,
	)
	return r
}

// Handler returns an HTTP handler exposing the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// InvitationCreated counts an invitation added to the container.
func (r *Recorder) InvitationCreated() {
	if r != nil {
		r.created.Inc()
	}
}

// InvitationAccepted counts a successful acceptance.
func (r *Recorder) InvitationAccepted() {
	if r != nil {
		r.accepted.Inc()
	}
}

// InvitationDeclined counts an acceptance the actor declined.
func (r *Recorder) InvitationDeclined() {
	if r != nil {
		r.declined.Inc()
	}
}

// AcceptFailed counts a failed acceptance attempt.
func (r *Recorder) AcceptFailed(reason string) {
	if r != nil {
		r.acceptFailures.WithLabelValues(reason).Inc()
	}
}

// ExpiredDeleted counts expired invitations removed by cleanup.
func (r *Recorder) ExpiredDeleted(n int) {
	if r != nil {
		r.expiredDeleted.Add(float64(n))
	}
}

// ObserveQuery records the latency of a catalog query.
func (r *Recorder) ObserveQuery(query string, start time.Time) {
	if r != nil {
		r.queryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}
}
