package diagnostics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/enorith/container/v2"
)

const (
	namespace = "ioc"

	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics is an observer exporting container activity to Prometheus.
type Metrics struct {
	Resolutions   *prometheus.CounterVec
	Constructions *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Live          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "resolutions_total",
			Help:      "Number of successful contract resolutions.",
		}, []string{"contract", "lifetime"}),
		Constructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "constructions_total",
			Help:      "Number of reflective constructions by result.",
		}, []string{"type", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "construction_duration_seconds",
			Help:      "Duration of reflective constructions, member injection included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"type"}),
		Live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "live",
			Help:      "Number of built and not yet disposed containers.",
		}),
	}

	var (
		errs       []error
		registered []prometheus.Collector
	)
	for _, c := range []prometheus.Collector{m.Resolutions, m.Constructions, m.Duration, m.Live} {
		if e := reg.Register(c); e != nil {
			errs = append(errs, e)
			continue
		}
		registered = append(registered, c)
	}
	if e := errors.Join(errs...); e != nil {
		for _, c := range registered {
			reg.Unregister(c)
		}
		return nil, e
	}

	return m, nil
}

func (m *Metrics) ContainerBuilt(*container.Container) {
	m.Live.Inc()
}

func (m *Metrics) ContainerDisposed(*container.Container) {
	m.Live.Dec()
}

func (m *Metrics) Resolved(e container.ResolveEvent) {
	m.Resolutions.WithLabelValues(typeName(e.Contract), e.Resolver.Lifetime().String()).Inc()
}

func (m *Metrics) Constructed(e container.ConstructEvent) {
	t := typeName(e.Type)
	result := resultSuccess
	if e.Err != nil {
		result = resultFailure
	}
	m.Constructions.WithLabelValues(t, result).Inc()
	m.Duration.WithLabelValues(t).Observe(e.Duration.Seconds())
}
