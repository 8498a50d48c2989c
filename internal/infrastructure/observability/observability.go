// Package observability assembles the tracer, logger and metric instruments
// handed to every use case, falling back to nop implementations.
package observability

import (
	"github.com/latrastienda/tienda/internal/observability"
)

// Option configures the provider built by New.
type Option func(*provider)

func WithTracer(t observability.Tracer) Option {
	return func(p *provider) {
		if t != nil {
			p.tracer = t
		}
	}
}

func WithLogger(l observability.Logger) Option {
	return func(p *provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithInstruments binds metric keys to instruments, typically the maps
// returned by prometrics.Instruments. Nil instruments are skipped.
func WithInstruments(
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) Option {
	return func(p *provider) {
		for k, c := range counters {
			if c != nil {
				p.counters[k] = c
			}
		}
		for k, h := range histograms {
			if h != nil {
				p.histograms[k] = h
			}
		}
	}
}

type provider struct {
	tracer     observability.Tracer
	logger     observability.Logger
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func New(opts ...Option) observability.Observability {
	p := &provider{
		tracer:     observability.NopTracer(),
		logger:     observability.NopLogger(),
		counters:   make(map[observability.MetricKey]observability.Counter),
		histograms: make(map[observability.MetricKey]observability.Histogram),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Unbound lists the metric keys in observability.CounterKeys and
// observability.HistogramKeys that tel records into a nop instrument.
func Unbound(tel observability.Observability) []observability.MetricKey {
	p, ok := tel.(*provider)
	if !ok {
		return nil
	}
	var out []observability.MetricKey
	for _, k := range observability.CounterKeys {
		if _, ok := p.counters[k]; !ok {
			out = append(out, k)
		}
	}
	for _, k := range observability.HistogramKeys {
		if _, ok := p.histograms[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func (p *provider) Tracer() observability.Tracer { return p.tracer }

func (p *provider) Logger() observability.Logger { return p.logger }

func (p *provider) Metrics() observability.Metrics { return p }

func (p *provider) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := p.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (p *provider) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := p.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}
