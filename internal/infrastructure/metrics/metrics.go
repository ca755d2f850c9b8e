// Package metrics exposes the bot's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"macroBot/internal/domain"
)

// Recorder counts custom command mutations by action and outcome.
type Recorder struct {
	mutations *prometheus.CounterVec
	limiters  prometheus.Gauge
	gatherer  prometheus.Gatherer
}

// NewRecorder registers the collectors on reg. A nil reg uses the default
// registry, which also carries the log statement counter.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custom_command_mutations_total",
				Help: "Custom command mutation attempts, by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		limiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "custom_command_rate_limiters",
			Help: "Rate limiter buckets currently held in memory.",
		}),
		gatherer: prometheus.DefaultGatherer,
	}

	for _, c := range []prometheus.Collector{r.mutations, r.limiters} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}
	return r, nil
}

func (r *Recorder) RecordMutation(action domain.MutationAction, outcome string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(string(action), outcome).Inc()
}

// SetLimiters reports the number of live limiter buckets after a prune.
func (r *Recorder) SetLimiters(n int) {
	if r == nil {
		return
	}
	r.limiters.Set(float64(n))
}

// Handler serves the registry the recorder was registered on.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
