package sched

import "sync/atomic"

// endpoint is an endpoint descriptor. The hw* words are read by the
// controller without the schedule lock; everything else is driver-only.
type endpoint struct {
	hwNext atomic.Uint32
	hwHead atomic.Uint32
	hwTail atomic.Uint32
	skip   atomic.Bool

	prev     uint32 // shadow of the previous endpoint's hwNext, async lists only
	gen      uint32
	state    State
	kind     Kind
	interval int
	load     int
	branch   int

	epoch   uint64 // frame the pending teardown was requested in
	destroy bool   // teardown frees the endpoint instead of relinking it
}

// td is a transfer descriptor.
type td struct {
	hwNext   atomic.Uint32
	code     atomic.Uint32
	doneNext atomic.Uint32

	ed    uint32
	seg   int
	xfer  *Transfer
}

// arena hands out descriptors by index. Index 0 is never used so that a
// zero link means null.
type arena[T any] struct {
	items []T
	free  []uint32
	used  []bool
}

func newArena[T any](n int) *arena[T] {
	a := &arena[T]{items: make([]T, n+1), used: make([]bool, n+1)}
	a.free = make([]uint32, 0, n)
	for i := n; i >= 1; i-- {
		a.free = append(a.free, uint32(i))
	}
	return a
}

func (a *arena[T]) alloc() (uint32, bool) {
	if len(a.free) == 0 {
		return 0, false
	}
	i := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.used[i] = true
	return i, true
}

func (a *arena[T]) release(i uint32) {
	if !a.used[i] {
		panic("sched: descriptor released twice")
	}
	a.used[i] = false
	a.free = append(a.free, i)
}

func (a *arena[T]) get(i uint32) *T { return &a.items[i] }

func (a *arena[T]) inUse() int { return len(a.items) - 1 - len(a.free) }
