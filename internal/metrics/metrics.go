// Package metrics exposes Prometheus instruments for the reservation
// engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg        *prometheus.Registry
	operations *prometheus.CounterVec
	lockWait   prometheus.Histogram
	seatsMoved *prometheus.CounterVec
}

// New creates a registry with the Go and process collectors plus the
// engine instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg: reg,
		operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_operations_total",
			Help: "Reservation engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		lockWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "reservation_lock_wait_seconds",
			Help:    "Time spent waiting for a show lock.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.3, 0.6, 1, 3},
		}),
		seatsMoved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_seats_total",
			Help: "Seats taken from or returned to inventory.",
		}, []string{"direction"}),
	}
}

// Operation counts one engine call. outcome is "ok" or a failure kind.
func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) LockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// SeatsBooked and SeatsReleased track inventory movement.
func (m *Metrics) SeatsBooked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.seatsMoved.WithLabelValues("booked").Add(float64(n))
}

func (m *Metrics) SeatsReleased(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.seatsMoved.WithLabelValues("released").Add(float64(n))
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
