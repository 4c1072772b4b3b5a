// Package metrics records context assembly and provider call metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gopherai-chat/internal/conversation"
)

type Recorder struct {
	assembleTurns   prometheus.Histogram
	assembleTokens  prometheus.Histogram
	assembleStops   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewRecorder registers the chat metrics on reg. Passing a fresh registry
// keeps tests independent of the global one.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		assembleTurns: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_assemble_turns",
			Help:    "Number of turns in each assembled context window",
			Buckets: prometheus.LinearBuckets(1, 4, 10),
		}),
		assembleTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_assemble_tokens",
			Help:    "Estimated prompt tokens of each assembled context window",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		}),
		assembleStops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_assemble_stops_total",
			Help: "Context assembly walks by the reason they stopped",
		}, []string{"reason"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_provider_requests_total",
			Help: "Completion provider requests by status",
		}, []string{"status"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_provider_request_duration_seconds",
			Help:    "Duration of completion provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) ObserveWindow(w conversation.Window) {
	r.assembleTurns.Observe(float64(len(w.Turns)))
	r.assembleTokens.Observe(float64(w.EstimatedTokens))
	r.assembleStops.WithLabelValues(string(w.Stop)).Inc()
}

func (r *Recorder) ObserveRequest(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(status).Inc()
	r.requestDuration.Observe(duration.Seconds())
}
