package primaryserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	tasksSubmitted  prometheus.Counter
	jobsQueued      prometheus.Counter
	jobsDropped     prometheus.Counter
	resultsReceived *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, queueLength func() float64) *metrics {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "analysis_queue_length",
		Help: "Position jobs waiting for a worker.",
	}, queueLength)

	return &metrics{
		tasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "analysis_tasks_submitted_total",
			Help: "Games accepted for analysis.",
		}),
		jobsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "analysis_jobs_queued_total",
			Help: "Position jobs added to the queue.",
		}),
		jobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "analysis_jobs_dropped_total",
			Help: "Position jobs rejected because the queue was full.",
		}),
		resultsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_results_received_total",
			Help: "Position results posted by workers, by outcome.",
		}, []string{"outcome"}),
	}
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
