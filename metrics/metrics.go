// Package metrics instruments URL resolution with Prometheus metrics.
//
// A batch run is a short-lived process, so instead of serving /metrics the
// collected values are written once to a file in the node_exporter textfile
// collector format.
//
// Metrics:
//   - redirectmap_resolutions_total{result} (Counter): resolutions by outcome (redirected, unchanged, error)
//   - redirectmap_resolution_errors_total{reason} (Counter): failed resolutions by NetworkError reason
//   - redirectmap_resolution_duration_seconds (Histogram): time spent resolving a single URL
//   - redirectmap_resolutions_in_flight (Gauge): resolutions currently in progress
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mccutchen/redirectmap"
)

// Resolution outcomes
const (
	ResultRedirected = "redirected"
	ResultUnchanged  = "unchanged"
	ResultError      = "error"
)

// Metrics holds the collectors for one batch, registered on their own
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
}

// New creates and registers a new set of collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redirectmap_resolutions_total",
			Help: "Total URL resolutions by result",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redirectmap_resolution_errors_total",
			Help: "Total failed URL resolutions by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redirectmap_resolution_duration_seconds",
			Help:    "URL resolution duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redirectmap_resolutions_in_flight",
			Help: "URL resolutions currently in progress",
		}),
	}
	m.Registry.MustRegister(m.resolutions, m.errors, m.duration, m.inFlight)
	return m
}

// WriteTextfile writes the current metric values to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// InstrumentResolver wraps a resolver so that every resolution is recorded
// in m. A resolution only counts as redirected if the final URL is not
// redirectmap.Equivalent to the given one, matching what a Processor
// configured with the same ignoreTrackingParams reports.
func InstrumentResolver(resolver redirectmap.Interface, m *Metrics, ignoreTrackingParams bool) redirectmap.Interface {
	return &instrumentedResolver{
		ignoreTrackingParams: ignoreTrackingParams,
		metrics:              m,
		resolver:             resolver,
	}
}

type instrumentedResolver struct {
	ignoreTrackingParams bool
	metrics              *Metrics
	resolver             redirectmap.Interface
}

func (r *instrumentedResolver) Resolve(ctx context.Context, givenURL string) (string, error) {
	r.metrics.inFlight.Inc()
	defer r.metrics.inFlight.Dec()

	start := time.Now()
	finalURL, err := r.resolver.Resolve(ctx, givenURL)
	r.metrics.duration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		r.metrics.resolutions.WithLabelValues(ResultError).Inc()
		r.metrics.errors.WithLabelValues(errorReason(err)).Inc()
	case !redirectmap.Equivalent(givenURL, finalURL, r.ignoreTrackingParams):
		r.metrics.resolutions.WithLabelValues(ResultRedirected).Inc()
	default:
		r.metrics.resolutions.WithLabelValues(ResultUnchanged).Inc()
	}

	return finalURL, err
}

func errorReason(err error) string {
	var netErr *redirectmap.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Reason()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}
