package sink

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ess-reader/ess-reader/pkg/types"
)

// Prometheus exposes the last reading as gauges in its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	battery   *prometheus.GaugeVec
	inverter  *prometheus.GaugeVec
	readings  prometheus.Counter
	timestamp prometheus.Gauge

	mu sync.Mutex
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ess",
			Name:      "battery",
			Help:      "EMS values of the last reading (field=filled is percent, temperature is degrees Celsius, everything else is W)",
		}, []string{"field"}),
		inverter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ess",
			Name:      "inverter",
			Help:      "PCS values of the last reading by channel (voltage in V, current in A, power in W)",
		}, []string{"source", "quantity"}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ess",
			Name:      "readings_total",
			Help:      "Number of readings forwarded",
		}),
		timestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ess",
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the last reading",
		}),
	}
	p.registry.MustRegister(p.battery, p.inverter, p.readings, p.timestamp)
	return p
}

func (p *Prometheus) Send(_ context.Context, r types.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := r.Battery
	for field, v := range map[string]float64{
		"filled":      b.Filled,
		"battery":     b.Battery,
		"pv":          b.PV,
		"withdrawal":  b.Withdrawal,
		"feedin":      b.Feedin,
		"inverter":    b.Inverter,
		"load":        b.Load,
		"temperature": b.Temperature,
	} {
		p.battery.WithLabelValues(field).Set(v)
	}

	for _, s := range r.Inverter.Sources() {
		p.inverter.WithLabelValues(s.Source, "voltage").Set(s.Voltage)
		p.inverter.WithLabelValues(s.Source, "current").Set(s.Current)
		p.inverter.WithLabelValues(s.Source, "power").Set(s.Power)
	}

	p.readings.Inc()
	if !r.Time.IsZero() {
		p.timestamp.Set(float64(r.Time.Unix()))
	}
	return nil
}

// Registry returns the registry holding the gauges.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
