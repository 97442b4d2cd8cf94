// Package dma manages the shared command area the controller reads posted
// commands from.
package dma

import (
	"errors"
	"fmt"

	"github.com/ehrlich-b/go-hcd/internal/desc"
)

var (
	// ErrAreaFull means the record does not fit behind the current write offset.
	// The caller keeps the request queued and retries after the next batch.
	ErrAreaFull = errors.New("command area full")

	// ErrAreaTooSmall means not even one maximum-size record fits.
	ErrAreaTooSmall = errors.New("command area smaller than one maximum-size record")
)

// Area is a single-writer view over shared command memory. Records are
// appended at a write offset that is reset at the start of each doorbell
// batch. Callers serialize access with the controller lock.
type Area struct {
	mem    []byte
	off    int
	maxSeg int
	align  int
}

// NewArea wraps mem. It fails if mem cannot hold one maximum-size record.
func NewArea(mem []byte, maxSeg, align int) (*Area, error) {
	if maxSeg <= 0 {
		return nil, fmt.Errorf("invalid segment limit %d", maxSeg)
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two", align)
	}
	if need := desc.MaxRecordLen(maxSeg, align); len(mem) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrAreaTooSmall, len(mem), need)
	}
	return &Area{mem: mem, maxSeg: maxSeg, align: align}, nil
}

// BeginBatch resets the write offset. Only call once the hardware has taken
// every record of the previous batch.
func (a *Area) BeginBatch() {
	a.off = 0
}

// Encode validates c and copies it to the current write offset. On success
// it returns the record's offset and its padded length and advances the
// write offset. On failure the area is untouched.
func (a *Area) Encode(c *desc.Command) (offset, length int, err error) {
	if err := desc.Validate(c, a.maxSeg); err != nil {
		return 0, 0, err
	}
	length = desc.Align(desc.RecordLen(len(c.Segments), a.maxSeg), a.align)
	if a.off+length > len(a.mem) {
		return 0, 0, ErrAreaFull
	}

	rec := a.mem[a.off : a.off+length]
	n, err := desc.MarshalTo(rec, c, a.maxSeg)
	if err != nil {
		return 0, 0, err
	}
	clear(rec[n:])

	offset = a.off
	a.off += length
	return offset, length, nil
}

// Fits reports whether a record with nseg segments fits behind the write offset.
func (a *Area) Fits(nseg int) bool {
	return a.off+desc.Align(desc.RecordLen(nseg, a.maxSeg), a.align) <= len(a.mem)
}

// Offset returns the current write offset.
func (a *Area) Offset() int { return a.off }

// Capacity returns the area size in bytes.
func (a *Area) Capacity() int { return len(a.mem) }

// Remaining returns the bytes left behind the write offset.
func (a *Area) Remaining() int { return len(a.mem) - a.off }

// MaxSegments returns the per-record segment limit.
func (a *Area) MaxSegments() int { return a.maxSeg }

// Alignment returns the record alignment.
func (a *Area) Alignment() int { return a.align }
