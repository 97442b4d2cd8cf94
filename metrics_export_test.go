package hcd

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	m := NewMetrics()
	m.Submitted.Add(3)
	m.RecordCommand(512, 2_000, true)
	m.RecordCommand(512, 2_000, false)
	m.RecordCompletion(KindStale)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(m, "hcd", "0")))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			key := f.GetName()
			for _, l := range metric.GetLabel() {
				if l.GetName() != "controller" {
					key += "/" + l.GetValue()
				}
			}
			if c := metric.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				values[key] = float64(h.GetSampleCount())
			}
		}
	}

	assert.Equal(t, 3.0, values["hcd_requests_submitted_total"])
	assert.Equal(t, 1.0, values["hcd_requests_finished_total/ok"])
	assert.Equal(t, 1.0, values["hcd_requests_finished_total/error"])
	assert.Equal(t, 1.0, values["hcd_completions_total/stale"])
	assert.Equal(t, 0.0, values["hcd_completions_total/spurious"])
	assert.Equal(t, 2.0, values["hcd_request_latency_seconds"])
}

func TestRegistryObserver(t *testing.T) {
	r := metrics.NewRegistry()
	o := NewRegistryObserver(r, "hcd0")

	o.ObserveCommand(64, 1000, true)
	o.ObserveCommand(64, 3000, false)
	o.ObserveDoorbell(4)
	o.ObserveCompletion(KindSpurious)
	o.ObserveQueueDepth(7)
	o.ObserveTransfer(8, true, false)

	assert.Equal(t, int64(1), r.Get("hcd0.requests.completed").(metrics.Counter).Count())
	assert.Equal(t, int64(1), r.Get("hcd0.requests.failed").(metrics.Counter).Count())
	assert.Equal(t, int64(1), r.Get("hcd0.irq.spurious").(metrics.Counter).Count())
	assert.Equal(t, int64(1), r.Get("hcd0.transfers.cancelled").(metrics.Counter).Count())
	assert.Equal(t, int64(7), r.Get("hcd0.queue.depth").(metrics.Gauge).Value())

	h := r.Get("hcd0.requests.latency_ns").(metrics.Histogram)
	assert.Equal(t, int64(2), h.Count())
	assert.Equal(t, int64(3000), h.Max())
}
