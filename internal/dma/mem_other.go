//go:build !linux

package dma

import "fmt"

// Map allocates size bytes of command memory from the Go heap.
func Map(size int) (*Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid command area size %d", size)
	}
	return &Memory{buf: make([]byte, size)}, nil
}
