package observability

import (
	"context"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports engine activity as Prometheus collectors.
type Metrics struct {
	runs            *prometheus.CounterVec
	activeRuns      prometheus.Gauge
	runDuration     prometheus.Histogram
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	documents       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_runs_total",
				Help: "Finished runs by exit status",
			},
			[]string{"status"},
		),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beamline_active_runs",
			Help: "Runs currently executing",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beamline_run_duration_seconds",
			Help:    "Wall time of finished runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_messages_total",
				Help: "Dispatched messages by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		messageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beamline_message_duration_seconds",
				Help:    "Time spent dispatching a message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beamline_documents_total",
				Help: "Published documents by type",
			},
			[]string{"type"},
		),
	}
	for _, c := range []prometheus.Collector{m.runs, m.activeRuns, m.runDuration, m.messages, m.messageDuration, m.documents} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) {
			m.activeRuns.Inc()
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.activeRuns.Dec()
			if e.Result != nil {
				m.runs.WithLabelValues(string(e.Result.Status)).Inc()
				m.runDuration.Observe(e.Result.Duration().Seconds())
			}
		},
		OnMessage: func(_ context.Context, e *domain.MessageEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.messages.WithLabelValues(string(e.Command), outcome).Inc()
			m.messageDuration.WithLabelValues(string(e.Command)).Observe(e.Duration.Seconds())
		},
		OnDocument: func(_ context.Context, doc domain.Document) {
			m.documents.WithLabelValues(string(doc.DocType())).Inc()
		},
	}
}

// Combine fans every hook out to all the given sets, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnRunStart = chain(out.OnRunStart, s.OnRunStart)
		out.OnRunEnd = chain(out.OnRunEnd, s.OnRunEnd)
		out.OnMessage = chain(out.OnMessage, s.OnMessage)
		out.OnDocument = chain(out.OnDocument, s.OnDocument)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
