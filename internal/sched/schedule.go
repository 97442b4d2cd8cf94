package sched

import (
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/go-hcd/internal/constants"
)

const branches = constants.PeriodicBranches

// Logger is the logging surface the schedule needs.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Config sizes a schedule.
type Config struct {
	Endpoints   int
	Descriptors int

	// Frame returns the controller's current frame number.
	Frame func() uint64

	Logger Logger
}

// Schedule is safe for concurrent use. mu is the schedule lock: every
// list splice, skip-bit write and head/tail inspection happens under it.
type Schedule struct {
	mu sync.Mutex

	eds *arena[endpoint]
	tds *arena[td]

	controlHead atomic.Uint32
	bulkHead    atomic.Uint32
	controlTail uint32
	bulkTail    uint32
	periodic    [branches]atomic.Uint32
	load        [branches]int

	doneHead atomic.Uint32

	teardown teardownRing
	frame    func() uint64
	logger   Logger
}

// New returns an empty schedule.
func New(cfg Config) *Schedule {
	if cfg.Endpoints <= 0 {
		cfg.Endpoints = constants.MaxEndpoints
	}
	if cfg.Descriptors <= 0 {
		cfg.Descriptors = constants.MaxTransferDescriptors
	}
	if cfg.Frame == nil {
		cfg.Frame = func() uint64 { return 0 }
	}
	return &Schedule{
		eds:    newArena[endpoint](cfg.Endpoints),
		tds:    newArena[td](cfg.Descriptors),
		frame:  cfg.Frame,
		logger: cfg.Logger,
	}
}

func (s *Schedule) debugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

// lookup resolves h. Caller holds mu.
func (s *Schedule) lookup(h Handle) (*endpoint, error) {
	if h.Index == 0 || int(h.Index) >= len(s.eds.items) || !s.eds.used[h.Index] {
		return nil, ErrStaleEndpoint
	}
	e := s.eds.get(h.Index)
	if e.gen != h.Gen {
		return nil, ErrStaleEndpoint
	}
	return e, nil
}

// Open allocates an endpoint with a dummy transfer descriptor attached.
// The endpoint is UNLINKED until the first transfer is submitted.
func (s *Schedule) Open(cfg EndpointConfig) (Handle, error) {
	interval := 0
	if cfg.Kind == Periodic {
		if cfg.Interval < 1 || cfg.Interval > branches {
			return Handle{}, ErrInvalidInterval
		}
		interval = branches
		for interval > cfg.Interval {
			interval >>= 1
		}
		if cfg.Load <= 0 {
			cfg.Load = 1
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.eds.alloc()
	if !ok {
		return Handle{}, ErrNoDescriptors
	}
	dummy, ok := s.tds.alloc()
	if !ok {
		s.eds.release(idx)
		return Handle{}, ErrNoDescriptors
	}
	s.resetTD(dummy, idx)

	e := s.eds.get(idx)
	e.gen++
	e.state = StateNew
	e.kind = cfg.Kind
	e.interval = interval
	e.load = cfg.Load
	e.branch = 0
	e.prev = 0
	e.epoch = 0
	e.destroy = false
	e.hwNext.Store(0)
	e.skip.Store(false)
	e.hwHead.Store(dummy)
	e.hwTail.Store(dummy)
	e.state = StateUnlinked

	h := Handle{Index: idx, Gen: e.gen}
	s.debugf("opened %s endpoint %s interval=%d", cfg.Kind, h, interval)
	return h, nil
}

func (s *Schedule) resetTD(i, ed uint32) {
	t := s.tds.get(i)
	t.hwNext.Store(0)
	t.code.Store(uint32(CodeNotAccessed))
	t.doneNext.Store(0)
	t.ed = ed
	t.seg = 0
	t.xfer = nil
}

// link splices endpoint i into its list. Caller holds mu.
func (s *Schedule) link(i uint32) {
	e := s.eds.get(i)
	switch e.kind {
	case Control:
		s.linkAsync(i, &s.controlHead, &s.controlTail)
	case Bulk:
		s.linkAsync(i, &s.bulkHead, &s.bulkTail)
	case Periodic:
		s.linkPeriodic(i)
	}
	e.skip.Store(false)
	e.state = StateOperational
}

// unlink removes endpoint i from its list. Caller holds mu.
func (s *Schedule) unlink(i uint32) {
	e := s.eds.get(i)
	switch e.kind {
	case Control:
		s.unlinkAsync(i, &s.controlHead, &s.controlTail)
	case Bulk:
		s.unlinkAsync(i, &s.bulkHead, &s.bulkTail)
	case Periodic:
		s.unlinkPeriodic(i)
	}
}

// linkAsync appends i. The hardware next pointer and the shadow prev are
// updated together.
func (s *Schedule) linkAsync(i uint32, head *atomic.Uint32, tail *uint32) {
	e := s.eds.get(i)
	e.hwNext.Store(0)
	e.prev = *tail
	if *tail == 0 {
		head.Store(i)
	} else {
		s.eds.get(*tail).hwNext.Store(i)
	}
	*tail = i
}

func (s *Schedule) unlinkAsync(i uint32, head *atomic.Uint32, tail *uint32) {
	e := s.eds.get(i)
	next := e.hwNext.Load()
	if e.prev == 0 {
		head.Store(next)
	} else {
		s.eds.get(e.prev).hwNext.Store(next)
	}
	if *tail == i {
		*tail = e.prev
	} else {
		s.eds.get(next).prev = e.prev
	}
	e.prev = 0
}

// balance picks the branch for a new periodic endpoint. An endpoint with
// interval n on branch b is visited from b, b+n, b+2n and so on, so the
// candidates are b in [0, n) and the winner is the one whose busiest visited
// branch is lightest, lowest b on ties. Its load is charged to every branch
// it will be visited from.
func (s *Schedule) balance(interval, load int) int {
	branch, best := 0, -1
	for b := 0; b < interval; b++ {
		worst := 0
		for i := b; i < branches; i += interval {
			worst = max(worst, s.load[i])
		}
		if best < 0 || worst < best {
			branch, best = b, worst
		}
	}
	for i := branch; i < branches; i += interval {
		s.load[i] += load
	}
	return branch
}

// linkPeriodic inserts i into every branch it serves, keeping each chain in
// descending interval order so branches share their short-interval tails.
func (s *Schedule) linkPeriodic(i uint32) {
	e := s.eds.get(i)
	e.branch = s.balance(e.interval, e.load)
	for b := e.branch; b < branches; b += e.interval {
		var prev uint32
		cur := s.periodic[b].Load()
		for cur != 0 && cur != i && s.eds.get(cur).interval >= e.interval {
			prev = cur
			cur = s.eds.get(cur).hwNext.Load()
		}
		if cur == i {
			continue
		}
		e.hwNext.Store(cur)
		if prev == 0 {
			s.periodic[b].Store(i)
		} else {
			s.eds.get(prev).hwNext.Store(i)
		}
	}
}

func (s *Schedule) unlinkPeriodic(i uint32) {
	e := s.eds.get(i)
	for b := e.branch; b < branches; b += e.interval {
		var prev uint32
		cur := s.periodic[b].Load()
		for cur != 0 && cur != i {
			prev = cur
			cur = s.eds.get(cur).hwNext.Load()
		}
		if cur != i {
			continue
		}
		if prev == 0 {
			s.periodic[b].Store(e.hwNext.Load())
		} else {
			s.eds.get(prev).hwNext.Store(e.hwNext.Load())
		}
	}
	for b := e.branch; b < branches; b += e.interval {
		s.load[b] -= e.load
	}
}

// Info returns a view of endpoint h.
func (s *Schedule) Info(h Handle) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(h)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Handle:   h,
		State:    e.state,
		Kind:     e.kind,
		Interval: e.interval,
		Branch:   e.branch,
		Queued:   s.queued(e),
	}, nil
}

// queued counts descriptors between head and tail. Caller holds mu.
func (s *Schedule) queued(e *endpoint) int {
	n := 0
	tail := e.hwTail.Load()
	for p := e.hwHead.Load(); p != tail && p != 0; p = s.tds.get(p).hwNext.Load() {
		n++
	}
	return n
}

// BranchLoad returns the bandwidth charged to a periodic branch.
func (s *Schedule) BranchLoad(branch int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load[branch]
}

// Endpoints returns the number of allocated endpoints.
func (s *Schedule) Endpoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eds.inUse()
}

// Descriptors returns the number of allocated transfer descriptors,
// dummies included.
func (s *Schedule) Descriptors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tds.inUse()
}

// PendingTeardown returns the number of endpoints awaiting a safe epoch.
func (s *Schedule) PendingTeardown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardown.len()
}
