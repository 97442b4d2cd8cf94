// Package backend provides media for the simulated controller
package backend

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/go-hcd/internal/interfaces"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("media closed")

// Memory is RAM-backed media for the simulator's cache service
type Memory struct {
	data []byte
	size int64
	mu   sync.RWMutex

	reads   atomic.Uint64
	writes  atomic.Uint64
	flushes atomic.Uint64
}

// NewMemory creates memory media of the specified size
func NewMemory(size int64) *Memory {
	return &Memory{
		data: make([]byte, size),
		size: size,
	}
}

// ReadAt reads len(p) bytes at off. A read crossing the end is short and
// returns io.EOF.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return 0, ErrClosed
	}
	if off < 0 || off >= m.size {
		return 0, io.EOF
	}
	m.reads.Add(1)

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes len(p) bytes at off. A write crossing the end is short
// and returns io.ErrShortWrite.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return 0, ErrClosed
	}
	if off < 0 || off >= m.size {
		return 0, io.ErrShortWrite
	}
	m.writes.Add(1)

	n := copy(m.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Size returns the capacity in bytes
func (m *Memory) Size() int64 {
	return m.size
}

// Close drops the contents
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// Flush only counts; memory has nothing to write back
func (m *Memory) Flush() error {
	m.flushes.Add(1)
	return nil
}

// Stats reports operation counters
func (m *Memory) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"type":      "memory",
		"size":      m.size,
		"allocated": len(m.data),
		"reads":     m.reads.Load(),
		"writes":    m.writes.Load(),
		"flushes":   m.flushes.Load(),
	}
}

var (
	_ interfaces.Media     = (*Memory)(nil)
	_ interfaces.StatMedia = (*Memory)(nil)
)
