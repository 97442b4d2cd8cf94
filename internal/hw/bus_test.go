package hw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusMapSlice(t *testing.T) {
	b := NewBus()
	a := make([]byte, 100)
	c := make([]byte, 5000)

	addrA := b.Map(a)
	addrC := b.Map(c)
	assert.Equal(t, uint64(busBase), addrA)
	assert.Equal(t, uint64(busBase+2*busGuard), addrC)

	buf, err := b.Slice(addrA+10, 20)
	require.NoError(t, err)
	buf[0] = 0x42
	assert.Equal(t, byte(0x42), a[10])

	_, err = b.Slice(addrA+90, 20)
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = b.Slice(addrA+200, 1)
	assert.ErrorIs(t, err, ErrBadAddress)

	buf, err = b.Slice(addrC+4096, 904)
	require.NoError(t, err)
	assert.Len(t, buf, 904)
}

func TestBusUnmap(t *testing.T) {
	b := NewBus()
	addr := b.Map(make([]byte, 16))
	b.Unmap(addr)

	_, err := b.Slice(addr, 1)
	assert.ErrorIs(t, err, ErrBadAddress)
}
