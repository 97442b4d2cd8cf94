// Package eventlog keeps a bounded history of controller and driver events.
// Consecutive identical events are coalesced into one entry with a repeat
// count, so a noisy condition cannot flush the history.
package eventlog

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Source identifies who produced an event. Zero is not a valid source.
type Source uint16

const (
	SourceAsync  Source = 1 // asynchronous controller event
	SourceDriver Source = 2 // driver bookkeeping (stale completion, reset, ...)
	SourceTest   Source = 3
	SourceSync   Source = 4 // result of a synchronous command
)

func (s Source) String() string {
	switch s {
	case SourceAsync:
		return "async"
	case SourceDriver:
		return "driver"
	case SourceTest:
		return "test"
	case SourceSync:
		return "sync"
	default:
		return fmt.Sprintf("source-%d", uint16(s))
	}
}

// DataSize is the size of an event payload.
const DataSize = 16

// MaxConsumers is the number of independent consumers ReadForConsumer tracks.
const MaxConsumers = 64

// ErrConsumer is returned for a consumer id outside [0, MaxConsumers).
var ErrConsumer = errors.New("invalid event consumer")

// Handle is a reader cursor. Start reads from the oldest event.
type Handle uint64

// Start is the handle of the oldest stored event.
const Start Handle = 0

// Event is one ring entry. Seq is unique and increases with every new
// (non-coalesced) entry.
type Event struct {
	Seq    uint64
	Source Source
	Index  uint16
	Data   [DataSize]byte
	First  time.Time
	Last   time.Time
	Count  uint32

	seen uint64
}

// Ring is safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Event
	head    int // position of the newest entry
	n       int
	nextSeq uint64
	now     func() time.Time
}

// New returns a ring holding up to size events.
func New(size int) *Ring {
	if size <= 0 {
		panic(fmt.Sprintf("eventlog: invalid ring size %d", size))
	}
	return &Ring{entries: make([]Event, size), head: -1, nextSeq: 1, now: time.Now}
}

// Store records an event and returns a copy of the entry it landed in.
// It reports false for source zero, which is ignored.
func (r *Ring) Store(src Source, index uint16, data []byte) (Event, bool) {
	if src == 0 {
		return Event{}, false
	}
	var d [DataSize]byte
	copy(d[:], data)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.n > 0 {
		e := &r.entries[r.head]
		if e.Source == src && e.Index == index && e.Data == d {
			e.Count++
			e.Last = now
			return *e, true
		}
	}

	r.head = (r.head + 1) % len(r.entries)
	if r.n < len(r.entries) {
		r.n++
	}
	r.entries[r.head] = Event{
		Seq:    r.nextSeq,
		Source: src,
		Index:  index,
		Data:   d,
		First:  now,
		Last:   now,
		Count:  1,
	}
	r.nextSeq++
	return r.entries[r.head], true
}

// oldest returns the ring position of the oldest entry. Caller holds mu.
func (r *Ring) oldest() int {
	return (r.head - r.n + 1 + len(r.entries)) % len(r.entries)
}

// Read returns the event at h and the handle of the next one. If the writer
// has overwritten h, reading resumes at the oldest entry. ok is false once
// the reader has caught up with the writer.
func (r *Ring) Read(h Handle) (e Event, next Handle, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return e, h, false
	}
	first := r.entries[r.oldest()].Seq
	seq := uint64(h)
	if seq < first {
		seq = first
	}
	if seq >= r.nextSeq {
		return e, Handle(seq), false
	}
	pos := (r.oldest() + int(seq-first)) % len(r.entries)
	e = r.entries[pos]
	return e, Handle(seq + 1), true
}

// ReadForConsumer returns the oldest event consumer has not seen yet and
// marks it seen.
func (r *Ring) ReadForConsumer(consumer int) (Event, bool, error) {
	if consumer < 0 || consumer >= MaxConsumers {
		return Event{}, false, fmt.Errorf("%w: %d", ErrConsumer, consumer)
	}
	bit := uint64(1) << uint(consumer)

	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.oldest()
	for i := 0; i < r.n; i++ {
		e := &r.entries[pos]
		if e.seen&bit == 0 {
			e.seen |= bit
			return *e, true, nil
		}
		pos = (pos + 1) % len(r.entries)
	}
	return Event{}, false, nil
}

// Snapshot returns every stored event, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, r.n)
	if r.n == 0 {
		return out
	}
	pos := r.oldest()
	for i := 0; i < r.n; i++ {
		out = append(out, r.entries[pos])
		pos = (pos + 1) % len(r.entries)
	}
	return out
}

// Clear drops every event. Sequence numbers keep increasing so stale
// handles never alias new events.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
	r.head = -1
	r.n = 0
}

// Len returns the number of stored events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the ring size.
func (r *Ring) Cap() int { return len(r.entries) }
