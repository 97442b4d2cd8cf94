package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-hcd/internal/desc"
)

type clock struct{ frame uint64 }

func (c *clock) now() uint64 { return c.frame }

func newTestSchedule(t *testing.T) (*Schedule, *clock) {
	t.Helper()
	c := &clock{frame: 100}
	return New(Config{Endpoints: 16, Descriptors: 64, Frame: c.now}), c
}

func xfer(lens ...uint32) *Transfer {
	t := &Transfer{}
	for i, l := range lens {
		t.Segments = append(t.Segments, desc.Segment{Addr: uint64(0x1000 * (i + 1)), Len: l})
	}
	return t
}

func mustOpen(t *testing.T, s *Schedule, cfg EndpointConfig) Handle {
	t.Helper()
	h, err := s.Open(cfg)
	require.NoError(t, err)
	return h
}

func state(t *testing.T, s *Schedule, h Handle) State {
	t.Helper()
	info, err := s.Info(h)
	require.NoError(t, err)
	return info.State
}

func TestOpenAttachesDummy(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})

	info, err := s.Info(h)
	require.NoError(t, err)
	assert.Equal(t, StateUnlinked, info.State)
	assert.Equal(t, 0, info.Queued)
	assert.Equal(t, 1, s.Descriptors())

	head, tail := s.Queue(h.Index)
	assert.NotZero(t, head)
	assert.Equal(t, head, tail)
	assert.Zero(t, s.BulkHead(), "not linked before first submit")
}

func TestSubmitLinksAndQueues(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})

	tr := xfer(512, 512)
	require.NoError(t, s.Submit(h, tr))
	assert.False(t, tr.ID.IsNil())
	assert.Equal(t, h, tr.Endpoint())

	info, _ := s.Info(h)
	assert.Equal(t, StateOperational, info.State)
	assert.Equal(t, 2, info.Queued)
	assert.Equal(t, h.Index, s.BulkHead())
	assert.Equal(t, 3, s.Descriptors())

	assert.ErrorIs(t, s.Submit(h, tr), ErrTransferQueued)
	assert.ErrorIs(t, s.Submit(h, &Transfer{}), ErrNoSegments)
}

func TestRetireCompletesInOrder(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Control})
	a, b := xfer(8, 64), xfer(8)
	require.NoError(t, s.Submit(h, a))
	require.NoError(t, s.Submit(h, b))

	require.True(t, s.Retire(h.Index, CodeOK))
	assert.True(t, s.DonePending())
	assert.Empty(t, s.ReapDone(), "first transfer still has one descriptor")

	require.True(t, s.Retire(h.Index, CodeOK))
	require.True(t, s.Retire(h.Index, CodeStall))
	require.False(t, s.Retire(h.Index, CodeOK), "queue is empty")

	done := s.ReapDone()
	require.Len(t, done, 2)
	assert.Same(t, a, done[0])
	assert.Same(t, b, done[1])
	assert.Equal(t, CodeOK, a.Code)
	assert.Equal(t, CodeStall, b.Code)
	assert.True(t, a.Finished())
	assert.Equal(t, 1, s.Descriptors(), "only the dummy is left")
}

func TestAsyncListShadowPrev(t *testing.T) {
	s, c := newTestSchedule(t)
	var hs []Handle
	var xs []*Transfer
	for i := 0; i < 3; i++ {
		h := mustOpen(t, s, EndpointConfig{Kind: Control})
		x := xfer(8)
		require.NoError(t, s.Submit(h, x))
		hs = append(hs, h)
		xs = append(xs, x)
	}
	assert.Equal(t, hs[0].Index, s.ControlHead())
	assert.Equal(t, hs[1].Index, s.NextEndpoint(hs[0].Index))
	assert.Equal(t, hs[2].Index, s.NextEndpoint(hs[1].Index))

	// middle
	require.NoError(t, s.CancelTransfer(xs[1]))
	assert.True(t, s.Skipped(hs[1].Index))
	assert.Equal(t, hs[2].Index, s.NextEndpoint(hs[0].Index))
	assert.Equal(t, hs[0].Index, s.eds.get(hs[2].Index).prev)

	// tail
	require.NoError(t, s.CancelTransfer(xs[2]))
	assert.Zero(t, s.NextEndpoint(hs[0].Index))
	assert.Equal(t, hs[0].Index, s.controlTail)

	// head
	require.NoError(t, s.CancelTransfer(xs[0]))
	assert.Zero(t, s.ControlHead())
	assert.Zero(t, s.controlTail)

	c.frame++
	done := s.Drain()
	assert.Len(t, done, 3)
	for _, h := range hs {
		assert.Equal(t, StateUnlinked, state(t, s, h))
	}

	// relinks on next submit
	require.NoError(t, s.Submit(hs[2], xfer(8)))
	assert.Equal(t, hs[2].Index, s.ControlHead())
}

func TestPeriodicBalanceAndOrder(t *testing.T) {
	s, _ := newTestSchedule(t)
	p1 := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 4})
	p2 := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 32})
	p3 := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 1})
	for _, h := range []Handle{p1, p2, p3} {
		require.NoError(t, s.Submit(h, xfer(8)))
	}

	i1, _ := s.Info(p1)
	i2, _ := s.Info(p2)
	i3, _ := s.Info(p3)
	assert.Equal(t, 0, i1.Branch)
	assert.Equal(t, 1, i2.Branch, "first least-loaded branch")
	assert.Equal(t, 0, i3.Branch)

	// descending interval: longer intervals first, shared tail of interval 1
	assert.Equal(t, p1.Index, s.PeriodicHead(0))
	assert.Equal(t, p3.Index, s.NextEndpoint(p1.Index))
	assert.Zero(t, s.NextEndpoint(p3.Index))
	assert.Equal(t, p2.Index, s.PeriodicHead(1))
	assert.Equal(t, p1.Index, s.PeriodicHead(4))
	assert.Equal(t, p3.Index, s.PeriodicHead(2))

	assert.Equal(t, 2, s.BranchLoad(0))
	assert.Equal(t, 2, s.BranchLoad(1))
	assert.Equal(t, 1, s.BranchLoad(2))

	// unlinking returns the load and repairs every branch
	_, err := s.Close(p1)
	require.NoError(t, err)
	assert.Equal(t, p3.Index, s.PeriodicHead(0))
	assert.Equal(t, p3.Index, s.PeriodicHead(4))
	assert.Equal(t, 1, s.BranchLoad(0))
}

func TestPeriodicBalanceUnevenLoads(t *testing.T) {
	s, _ := newTestSchedule(t)
	// Branch 3 is the busiest and branch 31 the only idle one. An interval-4
	// endpoint on branch 3 would also be visited from 31, but from 3 too.
	for i := 0; i < branches-1; i++ {
		s.load[i] = 1
	}
	s.load[3] = 5

	h := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 4})
	require.NoError(t, s.Submit(h, xfer(8)))
	info, err := s.Info(h)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Branch)
	assert.Equal(t, []int{2, 1, 1, 5}, []int{s.BranchLoad(0), s.BranchLoad(1), s.BranchLoad(2), s.BranchLoad(3)})
	assert.Equal(t, 0, s.BranchLoad(31))

	// Interval 2: the odd class holds branch 3, so the even class wins.
	h2 := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 2})
	require.NoError(t, s.Submit(h2, xfer(8)))
	info, err = s.Info(h2)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Branch)
	assert.Equal(t, 3, s.BranchLoad(0))
	assert.Equal(t, 5, s.BranchLoad(3))
}

func TestPeriodicIntervalRounding(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Periodic, Interval: 10})
	info, _ := s.Info(h)
	assert.Equal(t, 8, info.Interval)

	_, err := s.Open(EndpointConfig{Kind: Periodic, Interval: 0})
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = s.Open(EndpointConfig{Kind: Periodic, Interval: 33})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

// An endpoint being destroyed with three queued descriptors stays
// DELETE_REQUESTED until a drain runs after its frame has ended.
func TestTeardownWaitsForEpoch(t *testing.T) {
	s, c := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})
	xs := []*Transfer{xfer(512), xfer(512), xfer(512)}
	for _, x := range xs {
		require.NoError(t, s.Submit(h, x))
	}

	freed, err := s.Close(h)
	require.NoError(t, err)
	assert.False(t, freed)
	assert.Equal(t, StateDeleteRequested, state(t, s, h))
	assert.True(t, s.Skipped(h.Index))
	assert.Zero(t, s.BulkHead())
	assert.Equal(t, 1, s.PendingTeardown())

	assert.Empty(t, s.Drain())
	assert.Equal(t, StateDeleteRequested, state(t, s, h))

	// the controller finishes the descriptor it was working on this frame
	require.True(t, s.Retire(h.Index, CodeOK))
	done := s.Drain()
	require.Len(t, done, 1)
	assert.Same(t, xs[0], done[0])
	assert.Equal(t, StateDeleteRequested, state(t, s, h))

	c.frame++
	done = s.Drain()
	require.Len(t, done, 2)
	assert.Same(t, xs[1], done[0])
	assert.Same(t, xs[2], done[1])

	assert.False(t, xs[0].Cancelled)
	assert.Equal(t, CodeOK, xs[0].Code)
	assert.True(t, xs[1].Cancelled)
	assert.True(t, xs[2].Cancelled)

	_, err = s.Info(h)
	assert.ErrorIs(t, err, ErrStaleEndpoint)
	assert.Zero(t, s.Endpoints())
	assert.Zero(t, s.Descriptors())
	assert.Zero(t, s.PendingTeardown())
}

func TestCancelOneTransferRelinks(t *testing.T) {
	s, c := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})
	a, b, d := xfer(64), xfer(64, 64), xfer(64)
	for _, x := range []*Transfer{a, b, d} {
		require.NoError(t, s.Submit(h, x))
	}

	require.NoError(t, s.CancelTransfer(b))
	assert.Equal(t, StateDeleteRequested, state(t, s, h))

	// a later submit on a cancelling endpoint is accepted and kept
	e := xfer(64)
	require.NoError(t, s.Submit(h, e))

	c.frame++
	done := s.Drain()
	require.Len(t, done, 1)
	assert.Same(t, b, done[0])
	assert.True(t, b.Cancelled)

	info, _ := s.Info(h)
	assert.Equal(t, StateOperational, info.State)
	assert.Equal(t, 3, info.Queued)
	assert.False(t, s.Skipped(h.Index))
	assert.Equal(t, h.Index, s.BulkHead())

	for i := 0; i < 3; i++ {
		require.True(t, s.Retire(h.Index, CodeOK))
	}
	done = s.ReapDone()
	require.Len(t, done, 3)
	assert.Same(t, a, done[0])
	assert.Same(t, d, done[1])
	assert.Same(t, e, done[2])

	assert.ErrorIs(t, s.CancelTransfer(a), ErrTransferFinished)
}

func TestCloseUnlinkedFreesImmediately(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Control})
	freed, err := s.Close(h)
	require.NoError(t, err)
	assert.True(t, freed)
	assert.Zero(t, s.Endpoints())

	_, err = s.Close(h)
	assert.ErrorIs(t, err, ErrStaleEndpoint)

	// the index is reused under a new generation
	h2 := mustOpen(t, s, EndpointConfig{Kind: Control})
	assert.Equal(t, h.Index, h2.Index)
	assert.NotEqual(t, h.Gen, h2.Gen)
	assert.ErrorIs(t, s.Submit(h, xfer(8)), ErrStaleEndpoint)
}

func TestSubmitOnDestroyingEndpoint(t *testing.T) {
	s, _ := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})
	require.NoError(t, s.Submit(h, xfer(8)))
	_, err := s.Close(h)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Submit(h, xfer(8)), ErrEndpointClosing)
}

func TestCloseDuringCancel(t *testing.T) {
	s, c := newTestSchedule(t)
	h := mustOpen(t, s, EndpointConfig{Kind: Bulk})
	a, b := xfer(8), xfer(8)
	require.NoError(t, s.Submit(h, a))
	require.NoError(t, s.Submit(h, b))
	require.NoError(t, s.CancelTransfer(a))
	_, err := s.Close(h)
	require.NoError(t, err)

	c.frame++
	done := s.Drain()
	assert.Len(t, done, 2)
	assert.True(t, a.Cancelled)
	assert.True(t, b.Cancelled)
	assert.Zero(t, s.Endpoints())
}

func TestDescriptorExhaustion(t *testing.T) {
	s := New(Config{Endpoints: 2, Descriptors: 3})
	h, err := s.Open(EndpointConfig{Kind: Bulk})
	require.NoError(t, err)
	require.NoError(t, s.Submit(h, xfer(1, 1)))
	assert.ErrorIs(t, s.Submit(h, xfer(1)), ErrNoDescriptors)

	_, err = s.Open(EndpointConfig{Kind: Bulk})
	assert.ErrorIs(t, err, ErrNoDescriptors)
}

func TestTeardownRingMerge(t *testing.T) {
	var r teardownRing
	r.add(1, 10)
	r.add(1, 11)
	r.add(2, 12)
	r.add(3, 13)
	r.add(4, 14)
	// full: merges into the newest batch and moves its epoch forward
	r.add(9, 15)
	assert.Equal(t, 6, r.len())

	assert.Equal(t, []uint32{10, 11}, r.ready(2))
	assert.Equal(t, []uint32{12, 13}, r.ready(4))
	assert.Empty(t, r.ready(9))
	assert.Equal(t, []uint32{14, 15}, r.ready(10))
	assert.Zero(t, r.len())
}

func TestScheduleMemoryBounds(t *testing.T) {
	s, _ := newTestSchedule(t)
	assert.Zero(t, s.NextEndpoint(0))
	assert.True(t, s.Skipped(999))
	assert.False(t, s.Retire(0, CodeOK))
	head, tail := s.Queue(999)
	assert.Zero(t, head)
	assert.Zero(t, tail)
}
