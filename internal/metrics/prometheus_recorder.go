package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stepcounter"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	readings        prom.Counter
	rollovers       prom.Counter
	counterResets   prom.Counter
	delta           prom.Histogram
	persistFailures *prom.CounterVec
	persistDuration *prom.HistogramVec
	accumulators    prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		readings: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Raw step counter readings accepted",
		}),
		rollovers: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "day_rollovers_total",
			Help:      "Readings that started a new tracked day",
		}),
		counterResets: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "counter_resets_total",
			Help:      "Readings below the previous raw value (device reboot)",
		}),
		delta: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reading_delta_steps",
			Help:      "Steps attributed per reading",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		persistFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed state loads and saves",
		}, []string{"op"}),
		persistDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Duration of state loads and saves",
			Buckets:   prom.DefBuckets,
		}, []string{"op"}),
		accumulators: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_accumulators",
			Help:      "Accumulators currently held in memory",
		}),
	}
	reg.MustRegister(pr.readings, pr.rollovers, pr.counterResets, pr.delta,
		pr.persistFailures, pr.persistDuration, pr.accumulators)
	return pr
}

func (p *PrometheusRecorder) IncReadings()      { p.readings.Inc() }
func (p *PrometheusRecorder) IncRollovers()     { p.rollovers.Inc() }
func (p *PrometheusRecorder) IncCounterResets() { p.counterResets.Inc() }

func (p *PrometheusRecorder) ObserveDelta(steps int64) {
	p.delta.Observe(float64(steps))
}

func (p *PrometheusRecorder) IncPersistFailure(op string) {
	p.persistFailures.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) ObservePersistDuration(op string, d time.Duration) {
	p.persistDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetActiveAccumulators(n int) {
	p.accumulators.Set(float64(n))
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
