// Package promexport bridges an inflight metrics.Registry to Prometheus.
package promexport

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/inflight/internal/metrics"
)

// Collector exposes every counter of a registry as a Prometheus gauge
// sample labelled by counter name. Gauge rather than counter: inflight
// counts decrement when calls return.
type Collector struct {
	registry *metrics.Registry

	counterDesc *prom.Desc
	sizeDesc    *prom.Desc
}

// NewCollector creates a collector for reg under the given namespace
// (e.g. "inflight").
func NewCollector(reg *metrics.Registry, namespace string) *Collector {
	return &Collector{
		registry: reg,
		counterDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "counter"),
			"Current value of a named inflight counter.",
			[]string{"name"}, nil,
		),
		sizeDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "registry_counters"),
			"Number of counters registered in the registry.",
			nil, prom.Labels{"registry": reg.String()},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	ch <- c.counterDesc
	ch <- c.sizeDesc
}

// Collect implements prometheus.Collector. Values are read at scrape time.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	count := 0
	c.registry.Each(func(name string, counter *metrics.Counter) {
		count++
		ch <- prom.MustNewConstMetric(c.counterDesc, prom.GaugeValue, float64(counter.Count()), name)
	})
	ch <- prom.MustNewConstMetric(c.sizeDesc, prom.GaugeValue, float64(count))
}

// Register registers the collector plus a fresh registry on which the
// caller can mount additional collectors, and returns that registry.
func Register(reg *metrics.Registry, namespace string) (*prom.Registry, error) {
	promReg := prom.NewRegistry()
	if err := promReg.Register(NewCollector(reg, namespace)); err != nil {
		return nil, err
	}
	return promReg, nil
}
