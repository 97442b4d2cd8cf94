package sched

import "github.com/rs/xid"

// Submit queues t on endpoint h, one transfer descriptor per segment, and
// links the endpoint into the schedule if it is not linked yet. Transfers
// on one endpoint complete in submission order.
func (s *Schedule) Submit(h Handle, t *Transfer) error {
	if len(t.Segments) == 0 {
		return ErrNoSegments
	}
	for _, seg := range t.Segments {
		if seg.Len == 0 {
			return ErrNoSegments
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(h)
	if err != nil {
		return err
	}
	if e.state == StateDeleteRequested && e.destroy {
		return ErrEndpointClosing
	}
	if t.pending > 0 && !t.finished {
		return ErrTransferQueued
	}
	if len(s.tds.free) < len(t.Segments) {
		return ErrNoDescriptors
	}

	if t.ID.IsNil() {
		t.ID = xid.New()
	}
	t.ep = h
	t.pending = len(t.Segments)
	t.cancel = false
	t.finished = false
	t.Code = CodeOK
	t.Cancelled = false

	for i := range t.Segments {
		s.fillTail(h.Index, t, i)
	}

	if e.state == StateUnlinked {
		s.link(h.Index)
		s.debugf("linked endpoint %s into %s list", h, e.kind)
	}
	return nil
}

// fillTail turns the endpoint's dummy into a real descriptor and appends a
// fresh dummy behind it. The controller stops at the tail, so it never sees
// a half-written descriptor. Caller holds mu and has checked capacity.
func (s *Schedule) fillTail(ed uint32, t *Transfer, seg int) {
	e := s.eds.get(ed)
	dummy, _ := s.tds.alloc()
	s.resetTD(dummy, ed)

	cur := e.hwTail.Load()
	d := s.tds.get(cur)
	d.xfer = t
	d.seg = seg
	d.code.Store(uint32(CodeNotAccessed))
	d.hwNext.Store(dummy)
	e.hwTail.Store(dummy)
}

// ReapDone collects descriptors the controller retired onto the done queue
// and returns transfers that finished as a result, in retirement order.
func (s *Schedule) ReapDone() []*Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked(nil)
}

func (s *Schedule) reapLocked(out []*Transfer) []*Transfer {
	head := s.doneHead.Swap(0)
	if head == 0 {
		return out
	}

	// The done queue is pushed at the front; reverse it into retirement order.
	var order []uint32
	for p := head; p != 0; p = s.tds.get(p).doneNext.Load() {
		order = append(order, p)
	}
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		d := s.tds.get(p)
		t := d.xfer
		code := uint8(d.code.Load())
		s.tds.release(p)
		if t == nil {
			continue
		}
		if code != CodeOK && t.Code == CodeOK {
			t.Code = code
		}
		if s.retireOne(t) {
			out = append(out, t)
		}
	}
	return out
}

// retireOne accounts for one finished descriptor of t and reports whether
// t is now complete.
func (s *Schedule) retireOne(t *Transfer) bool {
	t.pending--
	if t.pending > 0 || t.finished {
		return false
	}
	t.finished = true
	return true
}
