package sched

import "github.com/ehrlich-b/go-hcd/internal/interfaces"

var _ interfaces.ScheduleMemory = (*Schedule)(nil)

// The methods below are the controller's view of the schedule. They only
// touch hardware words and never take the schedule lock.

func (s *Schedule) ControlHead() uint32 { return s.controlHead.Load() }

func (s *Schedule) BulkHead() uint32 { return s.bulkHead.Load() }

func (s *Schedule) PeriodicHead(branch int) uint32 {
	return s.periodic[branch%branches].Load()
}

func (s *Schedule) NextEndpoint(ed uint32) uint32 {
	if !s.validED(ed) {
		return 0
	}
	return s.eds.get(ed).hwNext.Load()
}

func (s *Schedule) Skipped(ed uint32) bool {
	if !s.validED(ed) {
		return true
	}
	return s.eds.get(ed).skip.Load()
}

func (s *Schedule) Queue(ed uint32) (head, tail uint32) {
	if !s.validED(ed) {
		return 0, 0
	}
	e := s.eds.get(ed)
	return e.hwHead.Load(), e.hwTail.Load()
}

// Retire completes the descriptor at ed's head and pushes it onto the
// done queue.
func (s *Schedule) Retire(ed uint32, code uint8) bool {
	if !s.validED(ed) {
		return false
	}
	e := s.eds.get(ed)
	head := e.hwHead.Load()
	if head == 0 || head == e.hwTail.Load() {
		return false
	}
	d := s.tds.get(head)
	d.code.Store(uint32(code))
	e.hwHead.Store(d.hwNext.Load())
	for {
		old := s.doneHead.Load()
		d.doneNext.Store(old)
		if s.doneHead.CompareAndSwap(old, head) {
			return true
		}
	}
}

// DonePending reports whether retired descriptors are waiting to be reaped.
func (s *Schedule) DonePending() bool { return s.doneHead.Load() != 0 }

func (s *Schedule) validED(ed uint32) bool {
	return ed != 0 && int(ed) < len(s.eds.items)
}
