package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets for call latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// PromRecorder records client calls into a dedicated Prometheus registry.
type PromRecorder struct {
	Registry *prometheus.Registry

	CallsTotal   *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	InFlight     *prometheus.GaugeVec
}

var _ Recorder = (*PromRecorder)(nil)

// NewPromRecorder creates a recorder with a custom registry holding the
// call collectors plus the Go runtime and process collectors.
func NewPromRecorder() *PromRecorder {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PromRecorder{
		Registry: reg,

		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anyhttp_client_calls_total",
			Help: "Completed client calls by engine, method and status class.",
		}, []string{"engine", "method", "status"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anyhttp_client_errors_total",
			Help: "Failed client calls by engine and error kind.",
		}, []string{"engine", "kind"}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anyhttp_client_call_duration_seconds",
			Help:    "Client call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"engine", "method"}),

		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "anyhttp_client_calls_in_flight",
			Help: "Client calls currently in progress.",
		}, []string{"engine"}),
	}

	reg.MustRegister(
		r.CallsTotal,
		r.ErrorsTotal,
		r.CallDuration,
		r.InFlight,
	)

	return r
}

// CallStarted implements Recorder.
func (r *PromRecorder) CallStarted(_ context.Context, engine, _ string) {
	r.InFlight.WithLabelValues(engine).Inc()
}

// CallFinished implements Recorder.
func (r *PromRecorder) CallFinished(_ context.Context, engine, method string, status int, kind string, d time.Duration) {
	r.InFlight.WithLabelValues(engine).Dec()

	m := NormalizeMethod(method)
	r.CallsTotal.WithLabelValues(engine, m, StatusClass(status)).Inc()
	r.CallDuration.WithLabelValues(engine, m).Observe(d.Seconds())
	if kind != "" {
		r.ErrorsTotal.WithLabelValues(engine, kind).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
