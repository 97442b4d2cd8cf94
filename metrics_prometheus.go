package hcd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a controller's Metrics to Prometheus. It reads the
// atomic counters at scrape time, so nothing is double counted.
type Collector struct {
	m *Metrics

	submitted   *prometheus.Desc
	finished    *prometheus.Desc
	requeued    *prometheus.Desc
	cancelled   *prometheus.Desc
	timeouts    *prometheus.Desc
	bytes       *prometheus.Desc
	doorbells   *prometheus.Desc
	completions *prometheus.Desc
	transfers   *prometheus.Desc
	maxQueue    *prometheus.Desc
	latency     *prometheus.Desc
}

// NewCollector returns a collector for m. controller is attached to every
// series as a constant label.
func NewCollector(m *Metrics, namespace, controller string) *Collector {
	labels := prometheus.Labels{"controller": controller}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &Collector{
		m:           m,
		submitted:   desc("requests_submitted_total", "Requests accepted by the controller."),
		finished:    desc("requests_finished_total", "Requests handed back to the caller.", "result"),
		requeued:    desc("requeues_total", "Busy completions put back on the submission queue.", "origin"),
		cancelled:   desc("requests_cancelled_total", "Requests cancelled before they were issued."),
		timeouts:    desc("slot_timeouts_total", "Slots force-released after a hardware timeout."),
		bytes:       desc("request_bytes_total", "Payload bytes of successful requests."),
		doorbells:   desc("doorbells_total", "Doorbell writes."),
		completions: desc("completions_total", "Decoded interrupt-time completions.", "kind"),
		transfers:   desc("transfers_total", "Finished endpoint transfers.", "result"),
		maxQueue:    desc("queue_depth_max", "Largest observed submission queue length."),
		latency:     desc("request_latency_seconds", "Time from submission to completion."),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.finished
	ch <- c.requeued
	ch <- c.cancelled
	ch <- c.timeouts
	ch <- c.bytes
	ch <- c.doorbells
	ch <- c.completions
	ch <- c.transfers
	ch <- c.maxQueue
	ch <- c.latency
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.m
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.submitted, m.Submitted.Load())
	counter(c.finished, m.Completed.Load(), "ok")
	counter(c.finished, m.Failed.Load(), "error")
	counter(c.requeued, m.Requeued.Load(), "caller")
	counter(c.requeued, m.Retried.Load(), "internal")
	counter(c.cancelled, m.Cancelled.Load())
	counter(c.timeouts, m.Timeouts.Load())
	counter(c.bytes, m.Bytes.Load())
	counter(c.doorbells, m.Doorbells.Load())
	for k := range m.Completions {
		counter(c.completions, m.Completions[k].Load(), CompletionKind(k).String())
	}
	counter(c.transfers, m.TransfersCompleted.Load(), "ok")
	counter(c.transfers, m.TransfersCancelled.Load(), "cancelled")
	counter(c.transfers, m.TransferErrors.Load(), "error")
	ch <- prometheus.MustNewConstMetric(c.maxQueue, prometheus.GaugeValue, float64(m.MaxQueueDepth.Load()))

	buckets := make(map[float64]uint64, numLatencyBuckets)
	for i, ub := range LatencyBuckets {
		buckets[float64(ub)/1e9] = m.LatencyBuckets[i].Load()
	}
	ch <- prometheus.MustNewConstHistogram(c.latency,
		m.OpCount.Load(), float64(m.TotalLatencyNs.Load())/1e9, buckets)
}

var _ prometheus.Collector = (*Collector)(nil)
