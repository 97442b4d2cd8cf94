package sched

import "github.com/ehrlich-b/go-hcd/internal/constants"

type batch struct {
	epoch uint64
	eds   []uint32
}

// teardownRing holds pending teardown batches, oldest first. When every
// batch is in use, new requests merge into the newest one and push its
// epoch forward, which only delays the safe point.
type teardownRing struct {
	batches [constants.TeardownBatches]batch
	start   int
	n       int
}

func (r *teardownRing) add(epoch uint64, ed uint32) {
	if r.n > 0 {
		newest := &r.batches[(r.start+r.n-1)%len(r.batches)]
		if newest.epoch == epoch || r.n == len(r.batches) {
			if epoch > newest.epoch {
				newest.epoch = epoch
			}
			newest.eds = append(newest.eds, ed)
			return
		}
	}
	b := &r.batches[(r.start+r.n)%len(r.batches)]
	b.epoch = epoch
	b.eds = append(b.eds[:0], ed)
	r.n++
}

// ready pops every batch whose epoch is older than frame.
func (r *teardownRing) ready(frame uint64) []uint32 {
	var out []uint32
	for r.n > 0 {
		b := &r.batches[r.start]
		if b.epoch >= frame {
			break
		}
		out = append(out, b.eds...)
		b.eds = b.eds[:0]
		r.start = (r.start + 1) % len(r.batches)
		r.n--
	}
	return out
}

func (r *teardownRing) len() int {
	total := 0
	for i := 0; i < r.n; i++ {
		total += len(r.batches[(r.start+i)%len(r.batches)].eds)
	}
	return total
}

// requestTeardown moves an operational endpoint to DELETE_REQUESTED: the
// skip bit is set first so the controller starts no new descriptor on it,
// then it is unlinked and parked until the current frame has ended.
// Caller holds mu.
func (s *Schedule) requestTeardown(i uint32) {
	e := s.eds.get(i)
	if e.state == StateDeleteRequested {
		return
	}
	e.skip.Store(true)
	s.unlink(i)
	e.state = StateDeleteRequested
	e.epoch = s.frame()
	s.teardown.add(e.epoch, i)
	s.debugf("endpoint %d delete requested at frame %d", i, e.epoch)
}

// CancelTransfer starts cancellation of a queued transfer. It returns
// immediately; the transfer is reported cancelled by a later Drain.
func (s *Schedule) CancelTransfer(t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return ErrTransferFinished
	}
	e, err := s.lookup(t.ep)
	if err != nil || t.pending == 0 {
		return ErrNotQueued
	}
	t.cancel = true
	if e.state == StateOperational {
		s.requestTeardown(t.ep.Index)
	}
	return nil
}

// Close destroys endpoint h. An endpoint the controller cannot reference
// is freed at once; otherwise it is torn down by a later Drain and every
// transfer still queued on it is cancelled. It reports whether the
// endpoint was freed immediately.
func (s *Schedule) Close(h Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(h)
	if err != nil {
		return false, err
	}
	switch e.state {
	case StateUnlinked:
		s.free(h.Index)
		return true, nil
	case StateOperational:
		e.destroy = true
		s.requestTeardown(h.Index)
	case StateDeleteRequested:
		e.destroy = true
	}
	return false, nil
}

// Drain reaps the done queue and finishes teardown of every endpoint whose
// epoch has passed. It returns finished transfers in completion order.
func (s *Schedule) Drain() []*Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.reapLocked(nil)
	for _, i := range s.teardown.ready(s.frame()) {
		out = s.finishTeardown(i, out)
	}
	return out
}

// finishTeardown re-reads head and tail and removes every descriptor that
// belongs to a cancelled transfer, or all of them when the endpoint is
// being destroyed. Caller holds mu.
func (s *Schedule) finishTeardown(i uint32, out []*Transfer) []*Transfer {
	e := s.eds.get(i)
	if e.state != StateDeleteRequested {
		return out
	}

	tail := e.hwTail.Load()
	var prev uint32
	for p := e.hwHead.Load(); p != tail; {
		d := s.tds.get(p)
		next := d.hwNext.Load()
		t := d.xfer
		if e.destroy || t.cancel {
			if prev == 0 {
				e.hwHead.Store(next)
			} else {
				s.tds.get(prev).hwNext.Store(next)
			}
			s.tds.release(p)
			t.Cancelled = true
			if s.retireOne(t) {
				out = append(out, t)
			}
		} else {
			prev = p
		}
		p = next
	}

	if e.destroy {
		s.free(i)
		return out
	}

	if e.hwHead.Load() != tail {
		s.link(i)
		s.debugf("endpoint %d relinked after cancel", i)
	} else {
		e.skip.Store(false)
		e.state = StateUnlinked
	}
	return out
}

// free reclaims an unlinked endpoint whose queue is empty. Caller holds mu.
func (s *Schedule) free(i uint32) {
	e := s.eds.get(i)
	s.tds.release(e.hwTail.Load())
	e.hwHead.Store(0)
	e.hwTail.Store(0)
	e.hwNext.Store(0)
	e.state = StateDeleted
	e.gen++
	s.eds.release(i)
	s.debugf("endpoint %d deleted", i)
}
