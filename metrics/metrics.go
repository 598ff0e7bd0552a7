package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "threadbot"
	subsystem = "thread"
)

// Metrics holds the orchestrator counters. Each instance registers on its
// own Registerer so tests can use a fresh registry.
type Metrics struct {
	RunsCreated  prometheus.Counter
	RunPolls     prometheus.Counter
	RunsFinished *prometheus.CounterVec
	Reloads      prometheus.Counter
	MessagesSent prometheus.Counter
	APIErrors    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_created_total",
			Help:      "Total number of assistant runs created",
		}),
		RunPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_polls_total",
			Help:      "Total number of run status requests",
		}),
		RunsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_finished_total",
				Help:      "Total number of runs that reached a terminal status",
			},
			[]string{"status"},
		),
		Reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reloads_total",
			Help:      "Total number of full message list reloads",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total number of user messages accepted by the backend",
		}),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "api_errors_total",
				Help:      "Total number of failed assistant API calls",
			},
			[]string{"op"},
		),
	}
}
