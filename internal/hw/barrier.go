package hw

import "sync/atomic"

// fence is the target of the atomic read-modify-write used as a barrier.
// atomic.AddInt64 compiles to LOCK XADD on x86-64, a full fence.
var fence int64

// Wmb orders every command record store before the doorbell write that
// publishes them.
func Wmb() {
	atomic.AddInt64(&fence, 0)
}

// Mb is a full fence, used before re-reading status after an ack.
func Mb() {
	atomic.AddInt64(&fence, 0)
}
