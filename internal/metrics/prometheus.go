// Package metrics exposes scan progress for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/burrow/scanner/internal/scanner"
)

const shutdownTimeout = 5 * time.Second

var _ scanner.Observer = (*Recorder)(nil)

// Recorder implements scanner.Observer on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	dispatchedTotal prometheus.Counter
	outcomesTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	inFlight        prometheus.Gauge
	queueDepth      prometheus.Gauge
	responseSeconds *prometheus.HistogramVec

	mu     sync.Mutex
	server *http.Server
	addr   string
}

func NewRecorder() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.dispatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "burrow_requests_dispatched_total",
		Help: "Requests handed to workers",
	})
	r.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_outcomes_total",
			Help: "Completed exchanges by verdict and status class",
		},
		[]string{"verdict", "class"},
	)
	r.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_transport_errors_total",
			Help: "Failed exchanges by error kind",
		},
		[]string{"kind"},
	)
	r.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "burrow_in_flight",
		Help: "Requests currently in flight",
	})
	r.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "burrow_queue_depth",
		Help: "Work items waiting in the queue",
	})
	r.responseSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_response_seconds",
			Help:    "Response time distribution in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"class"},
	)

	collectors := []prometheus.Collector{
		r.dispatchedTotal,
		r.outcomesTotal,
		r.errorsTotal,
		r.inFlight,
		r.queueDepth,
		r.responseSeconds,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return r, nil
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Dispatched(scanner.WorkItem) {
	r.dispatchedTotal.Inc()
	r.inFlight.Inc()
}

func (r *Recorder) Completed(o scanner.Outcome) {
	r.inFlight.Dec()

	if o.Failed() {
		r.errorsTotal.WithLabelValues(string(o.ErrorKind)).Inc()
		r.outcomesTotal.WithLabelValues("error", "none").Inc()
		return
	}

	class := statusClass(o.StatusCode)
	r.outcomesTotal.WithLabelValues(o.Verdict.String(), class).Inc()
	if o.Duration > 0 {
		r.responseSeconds.WithLabelValues(class).Observe(o.Duration.Seconds())
	}
}

func (r *Recorder) QueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve starts the metrics endpoint on addr and returns once the listener
// is bound. The server runs until Close.
func (r *Recorder) Serve(addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	r.mu.Lock()
	r.server = server
	r.addr = ln.Addr().String()
	r.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, or "" before Serve.
func (r *Recorder) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	server := r.server
	r.server = nil
	r.mu.Unlock()

	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
