package dma

// Memory is a block of command memory shared with the controller.
type Memory struct {
	buf   []byte
	unmap func([]byte) error
}

// Bytes returns the mapped region.
func (m *Memory) Bytes() []byte { return m.buf }

// Len returns the mapped size, which may exceed the requested size.
func (m *Memory) Len() int { return len(m.buf) }

// Close releases the mapping. The slice must not be used afterwards.
func (m *Memory) Close() error {
	if m.buf == nil {
		return nil
	}
	buf := m.buf
	m.buf = nil
	if m.unmap != nil {
		return m.unmap(buf)
	}
	return nil
}
