package ring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one ring.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	enqueued    prometheus.Counter
	dequeued    prometheus.Counter
	evicted     prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge

	capacity   float64
	registered []prometheus.Collector
	reg        prometheus.Registerer
}

// NewMetrics creates and registers the collectors for the ring called name.
func NewMetrics(reg prometheus.Registerer, name string, capacity int) (*Metrics, error) {
	labels := prometheus.Labels{"ring": name}
	m := &Metrics{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringbench",
			Subsystem:   "ring",
			Name:        "enqueued_total",
			ConstLabels: labels,
			Help:        "Total number of values accepted by Enqueue",
		}),
		dequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringbench",
			Subsystem:   "ring",
			Name:        "dequeued_total",
			ConstLabels: labels,
			Help:        "Total number of values returned by Dequeue",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ringbench",
			Subsystem:   "ring",
			Name:        "evicted_total",
			ConstLabels: labels,
			Help:        "Total number of oldest values dropped to make room",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringbench",
			Subsystem:   "ring",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of values held",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ringbench",
			Subsystem:   "ring",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Size as a fraction of capacity (0.0 to 1.0)",
		}),
		capacity: float64(capacity),
		reg:      reg,
	}

	for _, c := range []prometheus.Collector{m.enqueued, m.dequeued, m.evicted, m.size, m.utilization} {
		if err := reg.Register(c); err != nil {
			m.Unregister()
			return nil, err
		}
		m.registered = append(m.registered, c)
	}
	return m, nil
}

// Enqueued records an accepted value and the resulting size.
func (m *Metrics) Enqueued(size int) {
	if m == nil {
		return
	}
	m.enqueued.Inc()
	m.setSize(size)
}

// Dequeued records a returned value and the resulting size.
func (m *Metrics) Dequeued(size int) {
	if m == nil {
		return
	}
	m.dequeued.Inc()
	m.setSize(size)
}

// Evicted records an eviction.
func (m *Metrics) Evicted() {
	if m == nil {
		return
	}
	m.evicted.Inc()
}

// Unregister resets the size gauges and removes every registered collector.
func (m *Metrics) Unregister() {
	if m == nil {
		return
	}
	m.setSize(0)
	for _, c := range m.registered {
		m.reg.Unregister(c)
	}
	m.registered = nil
}

func (m *Metrics) setSize(size int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / m.capacity)
}
