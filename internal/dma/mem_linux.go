//go:build linux

package dma

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map allocates size bytes of page-aligned shared anonymous memory,
// rounded up to a whole page.
func Map(size int) (*Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid command area size %d", size)
	}
	pageSize := os.Getpagesize()
	if rem := size % pageSize; rem != 0 {
		size += pageSize - rem
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap command area: %w", err)
	}
	return &Memory{buf: buf, unmap: unix.Munmap}, nil
}
