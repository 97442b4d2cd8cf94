package hcd

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-hcd/internal/demux"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// CompletionKind classifies one interrupt-time completion.
type CompletionKind = demux.Kind

const (
	KindSpurious       = demux.Spurious
	KindAsyncEvent     = demux.AsyncEvent
	KindUnknownService = demux.UnknownService
	KindInvalid        = demux.Invalid
	KindStale          = demux.Stale
	KindInternal       = demux.Internal
	KindCallerRequest  = demux.CallerRequest
)

// Metrics tracks command and transfer lifecycle statistics for a controller
type Metrics struct {
	// Command counters
	Submitted atomic.Uint64 // Requests accepted by Submit
	Issued    atomic.Uint64 // Records posted to hardware
	Completed atomic.Uint64 // Requests finished successfully
	Failed    atomic.Uint64 // Requests finished with an error
	Requeued  atomic.Uint64 // Busy completions put back on the queue
	Retried   atomic.Uint64 // Internal commands re-issued after busy
	Cancelled atomic.Uint64 // Requests removed from the queue before issue
	Timeouts  atomic.Uint64 // Slots force-released by the watchdog

	// Byte counter
	Bytes atomic.Uint64 // Payload bytes of successful requests

	// Doorbell statistics
	Doorbells    atomic.Uint64
	BatchRecords atomic.Uint64 // Records posted across all doorbells

	// Interrupt demultiplexing, indexed by completion kind
	Completions [KindCallerRequest + 1]atomic.Uint64

	// Transfer counters
	TransfersCompleted atomic.Uint64
	TransfersCancelled atomic.Uint64
	TransferErrors     atomic.Uint64
	TransferBytes      atomic.Uint64

	// Queue statistics
	QueueDepthTotal atomic.Uint64 // Cumulative queue depth samples
	QueueDepthCount atomic.Uint64 // Number of queue depth measurements
	MaxQueueDepth   atomic.Uint32 // Maximum observed queue depth

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative request latency in nanoseconds
	OpCount        atomic.Uint64 // Total requests (for average latency calculation)

	// Latency histogram buckets (cumulative counts)
	// Each bucket[i] contains the count of requests with latency <= LatencyBuckets[i]
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Controller lifecycle
	StartTime atomic.Int64 // Controller start timestamp (UnixNano)
	StopTime  atomic.Int64 // Controller stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records a finished caller request
func (m *Metrics) RecordCommand(bytes uint64, latencyNs uint64, success bool) {
	if success {
		m.Completed.Add(1)
		m.Bytes.Add(bytes)
	} else {
		m.Failed.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRequeue records a busy completion that went back on the queue
func (m *Metrics) RecordRequeue(internal bool) {
	if internal {
		m.Retried.Add(1)
	} else {
		m.Requeued.Add(1)
	}
}

// RecordDoorbell records one doorbell carrying records commands
func (m *Metrics) RecordDoorbell(records int) {
	m.Doorbells.Add(1)
	m.BatchRecords.Add(uint64(records))
	m.Issued.Add(uint64(records))
}

// RecordCompletion records how an interrupt-time completion was classified
func (m *Metrics) RecordCompletion(kind CompletionKind) {
	if kind >= 0 && int(kind) < len(m.Completions) {
		m.Completions[kind].Add(1)
	}
}

// RecordTransfer records a finished endpoint transfer
func (m *Metrics) RecordTransfer(bytes uint64, cancelled, success bool) {
	switch {
	case cancelled:
		m.TransfersCancelled.Add(1)
	case success:
		m.TransfersCompleted.Add(1)
		m.TransferBytes.Add(bytes)
	default:
		m.TransferErrors.Add(1)
	}
}

// RecordQueueDepth records current queue depth for statistics
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// recordLatency records request latency and updates histogram
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the controller as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	Submitted uint64
	Issued    uint64
	Completed uint64
	Failed    uint64
	Requeued  uint64
	Retried   uint64
	Cancelled uint64
	Timeouts  uint64
	Bytes     uint64

	Doorbells      uint64
	AvgBatchSize   float64
	Spurious       uint64
	AsyncEvents    uint64
	UnknownService uint64
	Invalid        uint64
	Stale          uint64

	TransfersCompleted uint64
	TransfersCancelled uint64
	TransferErrors     uint64
	TransferBytes      uint64

	// Queue statistics
	AvgQueueDepth float64
	MaxQueueDepth uint32

	// Performance
	AvgLatencyNs uint64
	UptimeNs     uint64

	// Latency percentiles (in nanoseconds)
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	// Histogram bucket counts (cumulative)
	LatencyHistogram [numLatencyBuckets]uint64

	// Computed statistics
	IOPS      float64 // Finished requests per second
	Bandwidth float64 // Bytes per second
	ErrorRate float64 // Percentage of failed requests
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Submitted:          m.Submitted.Load(),
		Issued:             m.Issued.Load(),
		Completed:          m.Completed.Load(),
		Failed:             m.Failed.Load(),
		Requeued:           m.Requeued.Load(),
		Retried:            m.Retried.Load(),
		Cancelled:          m.Cancelled.Load(),
		Timeouts:           m.Timeouts.Load(),
		Bytes:              m.Bytes.Load(),
		Doorbells:          m.Doorbells.Load(),
		Spurious:           m.Completions[KindSpurious].Load(),
		AsyncEvents:        m.Completions[KindAsyncEvent].Load(),
		UnknownService:     m.Completions[KindUnknownService].Load(),
		Invalid:            m.Completions[KindInvalid].Load(),
		Stale:              m.Completions[KindStale].Load(),
		TransfersCompleted: m.TransfersCompleted.Load(),
		TransfersCancelled: m.TransfersCancelled.Load(),
		TransferErrors:     m.TransferErrors.Load(),
		TransferBytes:      m.TransferBytes.Load(),
		MaxQueueDepth:      m.MaxQueueDepth.Load(),
	}

	if snap.Doorbells > 0 {
		snap.AvgBatchSize = float64(m.BatchRecords.Load()) / float64(snap.Doorbells)
	}

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	finished := snap.Completed + snap.Failed
	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.IOPS = float64(finished) / uptimeSeconds
		snap.Bandwidth = float64(snap.Bytes) / uptimeSeconds
	}
	if finished > 0 {
		snap.ErrorRate = float64(snap.Failed) / float64(finished) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable metrics collection
type Observer interface {
	// ObserveCommand is called for each finished caller request
	ObserveCommand(bytes uint64, latencyNs uint64, success bool)

	// ObserveRequeue is called for each busy completion put back on the queue
	ObserveRequeue(internal bool)

	// ObserveDoorbell is called each time the doorbell is rung
	ObserveDoorbell(records int)

	// ObserveCompletion is called for each status the interrupt path decodes
	ObserveCompletion(kind CompletionKind)

	// ObserveTransfer is called for each finished endpoint transfer
	ObserveTransfer(bytes uint64, cancelled, success bool)

	// ObserveQueueDepth is called with the queue length after each drain
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(uint64, uint64, bool)  {}
func (NoOpObserver) ObserveRequeue(bool)                  {}
func (NoOpObserver) ObserveDoorbell(int)                  {}
func (NoOpObserver) ObserveCompletion(CompletionKind)     {}
func (NoOpObserver) ObserveTransfer(uint64, bool, bool)   {}
func (NoOpObserver) ObserveQueueDepth(uint32)             {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordCommand(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveRequeue(internal bool) {
	o.metrics.RecordRequeue(internal)
}

func (o *MetricsObserver) ObserveDoorbell(records int) {
	o.metrics.RecordDoorbell(records)
}

func (o *MetricsObserver) ObserveCompletion(kind CompletionKind) {
	o.metrics.RecordCompletion(kind)
}

func (o *MetricsObserver) ObserveTransfer(bytes uint64, cancelled, success bool) {
	o.metrics.RecordTransfer(bytes, cancelled, success)
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

// multiObserver fans out to several observers
type multiObserver []Observer

// MultiObserver returns an observer that forwards to every non-nil observer
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) ObserveCommand(bytes uint64, latencyNs uint64, success bool) {
	for _, o := range m {
		o.ObserveCommand(bytes, latencyNs, success)
	}
}

func (m multiObserver) ObserveRequeue(internal bool) {
	for _, o := range m {
		o.ObserveRequeue(internal)
	}
}

func (m multiObserver) ObserveDoorbell(records int) {
	for _, o := range m {
		o.ObserveDoorbell(records)
	}
}

func (m multiObserver) ObserveCompletion(kind CompletionKind) {
	for _, o := range m {
		o.ObserveCompletion(kind)
	}
}

func (m multiObserver) ObserveTransfer(bytes uint64, cancelled, success bool) {
	for _, o := range m {
		o.ObserveTransfer(bytes, cancelled, success)
	}
}

func (m multiObserver) ObserveQueueDepth(depth uint32) {
	for _, o := range m {
		o.ObserveQueueDepth(depth)
	}
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
var _ Observer = multiObserver(nil)
