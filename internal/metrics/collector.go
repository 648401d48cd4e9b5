// Package metrics implements ports.Metrics over prometheus client_golang,
// grounded on the teacher's observability.Collector (own Registry,
// constructed once, metrics registered up front). That collector hard-
// coded one field per named metric (NodesCreated, CacheHits, ...); here
// callers (currently the resilience executor) report through the
// three-method ports.Metrics port with a free-form name and label set, so
// Collector instead builds each CounterVec/GaugeVec/
// HistogramVec lazily, keyed by name, the first time it's seen.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the single prometheus-backed ports.Metrics implementation,
// wired into the resilience executor and served on /metrics.
type Collector struct {
	registry *prometheus.Registry
	mu       sync.Mutex

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Collector{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) IncCounter(name string, labels map[string]string) {
	keys, values := splitLabels(labels)
	c.mu.Lock()
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: name + " counter",
		}, keys)
		c.registry.MustRegister(vec)
		c.counters[name] = vec
	}
	c.mu.Unlock()
	vec.WithLabelValues(values...).Inc()
}

func (c *Collector) ObserveDuration(name string, labels map[string]string, d time.Duration) {
	keys, values := splitLabels(labels)
	c.mu.Lock()
	vec, ok := c.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name + " duration seconds",
			Buckets: prometheus.DefBuckets,
		}, keys)
		c.registry.MustRegister(vec)
		c.histograms[name] = vec
	}
	c.mu.Unlock()
	vec.WithLabelValues(values...).Observe(d.Seconds())
}

func (c *Collector) SetGauge(name string, labels map[string]string, value float64) {
	keys, values := splitLabels(labels)
	c.mu.Lock()
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: name + " gauge",
		}, keys)
		c.registry.MustRegister(vec)
		c.gauges[name] = vec
	}
	c.mu.Unlock()
	vec.WithLabelValues(values...).Set(value)
}

// splitLabels returns label keys/values in a stable order so repeated
// calls for the same name always build the same CounterVec/GaugeVec
// label schema — prometheus panics if label names vary across calls to
// WithLabelValues for the same vector.
func splitLabels(labels map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}
	return keys, values
}
