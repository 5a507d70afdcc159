package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments message reconciliation. It satisfies core.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	submitted         prometheus.Counter
	submissionsFailed *prometheus.CounterVec
	confirmed         *prometheus.CounterVec
	adopted           prometheus.Counter
	pending           prometheus.Gauge
	feedDisconnects   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "messages_submitted_total",
			Help:      "Messages inserted optimistically.",
		}),
		submissionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "submissions_failed_total",
			Help:      "Failed create calls by stage.",
		}, []string{"stage"}),
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "messages_confirmed_total",
			Help:      "Pending messages retired by the live feed, by match kind and outcome.",
		}, []string{"match", "outcome"}),
		adopted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "messages_adopted_total",
			Help:      "Optimistic messages re-keyed from a snapshot row before the create response.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Name:      "pending_messages",
			Help:      "Messages awaiting generation in the open conversation.",
		}),
		feedDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Name:      "live_feed_disconnects_total",
			Help:      "Live feed subscriptions that ended unexpectedly.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submitted,
		m.submissionsFailed,
		m.confirmed,
		m.adopted,
		m.pending,
		m.feedDisconnects,
	)
	return m
}

func (m *Metrics) Submitted() { m.submitted.Inc() }

func (m *Metrics) SubmissionFailed(stage string) {
	m.submissionsFailed.WithLabelValues(stage).Inc()
}

func (m *Metrics) Confirmed(match string, errored bool) {
	outcome := "completed"
	if errored {
		outcome = "errored"
	}
	m.confirmed.WithLabelValues(match, outcome).Inc()
}

func (m *Metrics) Adopted()          { m.adopted.Inc() }
func (m *Metrics) Pending(n int)     { m.pending.Set(float64(n)) }
func (m *Metrics) FeedDisconnected() { m.feedDisconnects.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
