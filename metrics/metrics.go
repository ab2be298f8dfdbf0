// Package metrics exports engine and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bracket"

// Recorder holds every collector of the service. It satisfies services.EngineMetrics.
type Recorder struct {
	registry *prometheus.Registry

	resultsReported     *prometheus.CounterVec
	slotWrites          prometheus.Counter
	integrityFailures   prometheus.Counter
	consistencyFindings *prometheus.GaugeVec
	httpLatency         *prometheus.HistogramVec
	httpRequests        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resultsReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "results_reported_total",
			Help:      "Match result reports by outcome",
		}, []string{"outcome"}),
		slotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "slot_writes_total",
			Help:      "Players written into downstream slots",
		}),
		integrityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "integrity_failures_total",
			Help:      "Slot conflicts that halted a tournament",
		}),
		consistencyFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consistency",
			Name:      "findings",
			Help:      "Findings of the last consistency check per tournament",
		}, []string{"tournament_id"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route",
		}, []string{"route", "method", "code"}),
	}
	r.registry.MustRegister(
		r.resultsReported,
		r.slotWrites,
		r.integrityFailures,
		r.consistencyFindings,
		r.httpLatency,
		r.httpRequests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ResultReported(outcome string) {
	r.resultsReported.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SlotWritten() {
	r.slotWrites.Inc()
}

func (r *Recorder) IntegrityFailure() {
	r.integrityFailures.Inc()
}

func (r *Recorder) ConsistencyFindings(tournamentID string, findings int) {
	r.consistencyFindings.WithLabelValues(tournamentID).Set(float64(findings))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware records latency and count of every request by chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unknown"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{"route": route, "method": req.Method, "code": strconv.Itoa(status)}
		r.httpLatency.With(labels).Observe(time.Since(start).Seconds())
		r.httpRequests.With(labels).Inc()
	})
}
