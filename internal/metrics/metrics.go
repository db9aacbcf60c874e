package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hellokube"

// Collector owns a private registry so tests and multiple servers never collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge

	ready atomic.Bool
}

// NewCollector labels every series with service=<name>.
func NewCollector(service string) *Collector {
	labels := prometheus.Labels{"service": service}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Number of HTTP requests by status code and method.",
			ConstLabels: labels,
		}, []string{"code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "Latency of HTTP requests.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"code", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_in_flight",
			Help:        "Number of HTTP requests currently being served.",
			ConstLabels: labels,
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.duration,
		c.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Instrument wraps h so every request is counted and timed.
func (c *Collector) Instrument(h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(c.inFlight,
		promhttp.InstrumentHandlerDuration(c.duration,
			promhttp.InstrumentHandlerCounter(c.requests, h),
		),
	)
}

func (c *Collector) MarkReady() {
	c.ready.Store(true)
}

func (c *Collector) MarkNotReady() {
	c.ready.Store(false)
}

func (c *Collector) Ready() bool {
	return c.ready.Load()
}

// AdminRouter serves /metrics, /livez and /readyz.
func (c *Collector) AdminRouter() *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry}))
	router.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, "ok")
	})
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !c.Ready() {
			writeProbe(w, http.StatusServiceUnavailable, "not ready")
			return
		}

		writeProbe(w, http.StatusOK, "ok")
	})

	return router
}

func writeProbe(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
