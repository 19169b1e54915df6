// Package telemetry exposes calibration progress as Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	massbalance "github.com/jamesainslie/go-massbalance"
)

const namespace = "massbalance"

// Metrics implements massbalance.Observer.
type Metrics struct {
	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	deviation    prometheus.Gauge
	scale        prometheus.Gauge
	decisions    *prometheus.CounterVec
	coefficient  *prometheus.GaugeVec
	epoch        prometheus.Gauge
}

var _ massbalance.Observer = (*Metrics)(nil)

// New registers the calibration metrics with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Evaluation passes completed, by kind.",
		}, []string{"kind"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of one evaluation pass, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"kind"}),
		deviation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_deviation",
			Help:      "Deviation the search currently compares probes against.",
		}),
		scale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "global_scale",
			Help:      "Current global scale.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Probe outcomes, by parameter and decision.",
		}, []string{"param", "decision"}),
		coefficient: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coefficient",
			Help:      "Current coefficient value, by parameter.",
		}, []string{"param"}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "epoch",
			Help:      "Epoch of the most recent decision.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.passes, m.passDuration, m.deviation, m.scale, m.decisions, m.coefficient, m.epoch,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return m, nil
}

// ObservePass records a completed pass.
func (m *Metrics) ObservePass(ev massbalance.PassEvent) {
	kind := ev.Kind.String()
	m.passes.WithLabelValues(kind).Inc()
	m.passDuration.WithLabelValues(kind).Observe(ev.Duration.Seconds())
	m.scale.Set(ev.Scale)
	if ev.Kind == massbalance.PassInitial {
		m.deviation.Set(ev.Deviation)
	}
}

// ObserveDecision records a probe outcome.
func (m *Metrics) ObserveDecision(ev massbalance.DecisionEvent) {
	m.decisions.WithLabelValues(ev.Parameter, ev.Decision.String()).Inc()
	m.coefficient.WithLabelValues(ev.Parameter).Set(ev.Value)
	m.deviation.Set(ev.Deviation)
	m.epoch.Set(float64(ev.Epoch))
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
