package hw

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBadAddress is returned for a bus address outside every mapped region.
var ErrBadAddress = errors.New("bus address not mapped")

const (
	busBase  = 0x1000_0000
	busGuard = 4096
)

type region struct {
	base uint64
	buf  []byte
}

// Bus hands out device-visible addresses for host buffers, like a DMA
// mapping layer. The controller resolves scatter-gather addresses through it.
type Bus struct {
	mu      sync.RWMutex
	next    uint64
	regions []region
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{next: busBase}
}

// Map makes buf visible to the controller and returns its bus address.
func (b *Bus) Map(buf []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := b.next
	size := uint64(len(buf))
	if rem := size % busGuard; rem != 0 {
		size += busGuard - rem
	}
	b.next += size + busGuard
	b.regions = append(b.regions, region{base: addr, buf: buf})
	return addr
}

// Unmap removes the region starting at addr.
func (b *Bus) Unmap(addr uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.regions {
		if r.base == addr {
			b.regions = append(b.regions[:i], b.regions[i+1:]...)
			return
		}
	}
}

// Slice returns the n host bytes at addr. The range must lie in one region.
func (b *Bus) Slice(addr uint64, n uint32) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.regions {
		if addr < r.base || addr >= r.base+uint64(len(r.buf)) {
			continue
		}
		off := addr - r.base
		if off+uint64(n) > uint64(len(r.buf)) {
			return nil, fmt.Errorf("%w: %#x+%d crosses region end", ErrBadAddress, addr, n)
		}
		return r.buf[off : off+uint64(n)], nil
	}
	return nil, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
}
