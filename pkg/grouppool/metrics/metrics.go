// Package metrics exposes a grouppool.Pool's admission-control
// behavior to Prometheus: current per-tag slot usage as gauges,
// plus cumulative admitted/refused counts as counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

// Recorder implements grouppool.Observer and maintains the counters
// that can't be derived from a point-in-time snapshot (admitted and
// refused totals). It also pulls a live gauge snapshot on each scrape
// via prometheus.Collector, so gauge values are never stale between
// events.
type Recorder struct {
	pool *grouppool.Pool

	admittedTotal *prometheus.CounterVec
	borrowedTotal *prometheus.CounterVec
	refusedTotal  *prometheus.CounterVec

	reserved *prometheus.Desc
	inUse    *prometheus.Desc
	borrowed *prometheus.Desc
}

// NewRecorder builds a Recorder for pool. namespace/subsystem follow
// the usual prometheus naming convention, e.g. ("myapp", "grouppool").
func NewRecorder(pool *grouppool.Pool, namespace, subsystem string) *Recorder {
	return &Recorder{
		pool: pool,
		admittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "admitted_total", Help: "Tasks admitted, by tag.",
		}, []string{"tag"}),
		borrowedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "borrowed_total", Help: "Tasks admitted via a generic-pool borrow, by tag.",
		}, []string{"tag"}),
		refusedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "refused_total", Help: "Admission attempts refused for lack of capacity, by tag.",
		}, []string{"tag"}),
		reserved: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "reserved_slots"),
			"Reserved slot count, by tag.", []string{"tag"}, nil,
		),
		inUse: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "in_use_slots"),
			"Slots currently occupied, by tag.", []string{"tag"}, nil,
		),
		borrowed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "borrowed_slots"),
			"Slots currently occupied via generic overflow, by tag.", []string{"tag"}, nil,
		),
	}
}

// Admitted implements grouppool.Observer.
func (r *Recorder) Admitted(tag grouppool.Tag, borrowed bool) {
	r.admittedTotal.WithLabelValues(tag.String()).Inc()
	if borrowed {
		r.borrowedTotal.WithLabelValues(tag.String()).Inc()
	}
}

// Refused implements grouppool.Observer.
func (r *Recorder) Refused(tag grouppool.Tag) {
	r.refusedTotal.WithLabelValues(tag.String()).Inc()
}

// Released implements grouppool.Observer. Gauges are read fresh from
// the pool on every scrape, so Released has nothing to update itself.
func (r *Recorder) Released(grouppool.Tag, bool) {}

// Describe implements prometheus.Collector.
func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	r.admittedTotal.Describe(ch)
	r.borrowedTotal.Describe(ch)
	r.refusedTotal.Describe(ch)
	ch <- r.reserved
	ch <- r.inUse
	ch <- r.borrowed
}

// Collect implements prometheus.Collector.
func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	r.admittedTotal.Collect(ch)
	r.borrowedTotal.Collect(ch)
	r.refusedTotal.Collect(ch)

	for tag, stats := range r.pool.Stats() {
		label := tag.String()
		ch <- prometheus.MustNewConstMetric(r.reserved, prometheus.GaugeValue, float64(stats.Reserved), label)
		ch <- prometheus.MustNewConstMetric(r.inUse, prometheus.GaugeValue, float64(stats.InUse), label)
		ch <- prometheus.MustNewConstMetric(r.borrowed, prometheus.GaugeValue, float64(stats.Borrowed), label)
	}
}
