package querycache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache traffic. A nil *Metrics is valid and counts nothing.
type Metrics struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Inserts     prometheus.Counter
	Invalidated prometheus.Counter
}

// NewMetrics builds unregistered counters under the given namespace.
func NewMetrics(namespace string) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		Hits:        counter("hits_total", "Cached queries answered from the cache."),
		Misses:      counter("misses_total", "Cached queries that had to be computed."),
		Inserts:     counter("inserts_total", "Computed results stored in the cache."),
		Invalidated: counter("invalidated_total", "Entries dropped by novelty."),
	}
}

// RegisterMetrics registers every counter with reg.
func RegisterMetrics(reg prometheus.Registerer, m *Metrics) error {
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Inserts, m.Invalidated} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) insert() {
	if m != nil {
		m.Inserts.Inc()
	}
}

func (m *Metrics) invalidated(n int) {
	if m != nil && n > 0 {
		m.Invalidated.Add(float64(n))
	}
}
