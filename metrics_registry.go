package hcd

import (
	"github.com/rcrowley/go-metrics"
)

// RegistryObserver publishes controller events into a go-metrics registry,
// for reporters that consume one (graphite, prometheus bridges).
type RegistryObserver struct {
	completed metrics.Counter
	failed    metrics.Counter
	requeued  metrics.Counter
	retried   metrics.Counter
	doorbells metrics.Counter
	spurious  metrics.Counter
	stale     metrics.Counter
	events    metrics.Counter
	transfers metrics.Counter
	cancelled metrics.Counter
	latency   metrics.Histogram
	batch     metrics.Histogram
	queue     metrics.Gauge
}

// NewRegistryObserver registers its metrics under prefix in r. A nil
// registry means metrics.DefaultRegistry.
func NewRegistryObserver(r metrics.Registry, prefix string) *RegistryObserver {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	name := func(s string) string { return prefix + "." + s }
	sample := func() metrics.Sample { return metrics.NewExpDecaySample(1028, 0.015) }

	return &RegistryObserver{
		completed: metrics.GetOrRegisterCounter(name("requests.completed"), r),
		failed:    metrics.GetOrRegisterCounter(name("requests.failed"), r),
		requeued:  metrics.GetOrRegisterCounter(name("requests.requeued"), r),
		retried:   metrics.GetOrRegisterCounter(name("internal.retried"), r),
		doorbells: metrics.GetOrRegisterCounter(name("doorbells"), r),
		spurious:  metrics.GetOrRegisterCounter(name("irq.spurious"), r),
		stale:     metrics.GetOrRegisterCounter(name("irq.stale"), r),
		events:    metrics.GetOrRegisterCounter(name("irq.async_events"), r),
		transfers: metrics.GetOrRegisterCounter(name("transfers.completed"), r),
		cancelled: metrics.GetOrRegisterCounter(name("transfers.cancelled"), r),
		latency:   metrics.GetOrRegisterHistogram(name("requests.latency_ns"), r, sample()),
		batch:     metrics.GetOrRegisterHistogram(name("doorbells.batch"), r, sample()),
		queue:     metrics.GetOrRegisterGauge(name("queue.depth"), r),
	}
}

func (o *RegistryObserver) ObserveCommand(_ uint64, latencyNs uint64, success bool) {
	if success {
		o.completed.Inc(1)
	} else {
		o.failed.Inc(1)
	}
	o.latency.Update(int64(latencyNs))
}

func (o *RegistryObserver) ObserveRequeue(internal bool) {
	if internal {
		o.retried.Inc(1)
	} else {
		o.requeued.Inc(1)
	}
}

func (o *RegistryObserver) ObserveDoorbell(records int) {
	o.doorbells.Inc(1)
	o.batch.Update(int64(records))
}

func (o *RegistryObserver) ObserveCompletion(kind CompletionKind) {
	switch kind {
	case KindSpurious:
		o.spurious.Inc(1)
	case KindStale:
		o.stale.Inc(1)
	case KindAsyncEvent:
		o.events.Inc(1)
	}
}

func (o *RegistryObserver) ObserveTransfer(_ uint64, cancelled, success bool) {
	if cancelled {
		o.cancelled.Inc(1)
	} else if success {
		o.transfers.Inc(1)
	}
}

func (o *RegistryObserver) ObserveQueueDepth(depth uint32) {
	o.queue.Update(int64(depth))
}

var _ Observer = (*RegistryObserver)(nil)
