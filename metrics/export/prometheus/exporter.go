package prometheus

import (
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	vzauth "github.com/vocalizeai/vzauth"
	"github.com/vocalizeai/vzauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() vzauth.MetricsSnapshot
	NotificationsDropped() uint64
}

type describedCounter struct {
	id   vzauth.MetricID
	desc *promclient.Desc
}

type describedHistogram struct {
	id   vzauth.MetricID
	desc *promclient.Desc
}

// Collector is a [promclient.Collector] reading a manager's metric
// snapshot on every scrape.
type Collector struct {
	source     metricsSource
	counters   []describedCounter
	histograms []describedHistogram
	dropped    *promclient.Desc
}

// NewCollector creates a collector for m.
func NewCollector(m *vzauth.Manager) *Collector {
	return NewCollectorFromSource(m)
}

// NewCollectorFromSource creates a collector over any snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]describedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]describedHistogram, 0, len(internaldefs.HistogramDefs)),
		dropped: promclient.NewDesc(
			"vzauth_notifications_dropped_total",
			"Notifications dropped because the dispatcher queue was full.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, describedCounter{
			id:   def.ID,
			desc: promclient.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, describedHistogram{
			id:   def.ID,
			desc: promclient.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

// Describe implements [promclient.Collector].
func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.dropped
}

// Collect implements [promclient.Collector]. A disabled metrics set
// yields no samples.
func (c *Collector) Collect(ch chan<- promclient.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	dropped := c.source.NotificationsDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, d := range c.counters {
		ch <- promclient.MustNewConstMetric(d.desc, promclient.CounterValue, float64(snapshot.Counters[d.id]))
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]
		// The core histogram keeps no running sum.
		ch <- promclient.MustNewConstHistogram(d.desc, count, 0, buckets)
	}

	ch <- promclient.MustNewConstMetric(c.dropped, promclient.CounterValue, float64(dropped))
}

// Handler serves the collector from a private registry in the Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	registry := promclient.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
