package slot

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireFirstEmpty(t *testing.T) {
	tbl := New[string](3)

	a, err := tbl.Acquire(Caller, 1, "a")
	require.NoError(t, err)
	b, err := tbl.Acquire(Caller, 1, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	e := tbl.Release(a)
	assert.Equal(t, "a", e.Value)
	assert.Equal(t, Caller, e.Kind)

	c, err := tbl.Acquire(Internal, 0x0b, "c")
	require.NoError(t, err)
	assert.Equal(t, 0, c, "freed slot is reused first")
}

func TestAcquireFull(t *testing.T) {
	tbl := New[int](2)
	_, err := tbl.Acquire(Caller, 1, 1)
	require.NoError(t, err)
	_, err = tbl.Acquire(Caller, 1, 2)
	require.NoError(t, err)

	idx, err := tbl.Acquire(Caller, 1, 3)
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, -1, idx)

	// fails closed, nothing overwritten
	e, ok := tbl.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)
}

func TestDoubleReleasePanics(t *testing.T) {
	tbl := New[int](1)
	i, _ := tbl.Acquire(Caller, 1, 7)
	tbl.Release(i)
	assert.Panics(t, func() { tbl.Release(i) })
	assert.Panics(t, func() { tbl.Release(5) })
}

func TestLookup(t *testing.T) {
	tbl := New[int](2)
	e, ok := tbl.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, Empty, e.Kind)

	_, ok = tbl.Lookup(2)
	assert.False(t, ok)
	_, ok = tbl.Lookup(-1)
	assert.False(t, ok)
}

func TestEach(t *testing.T) {
	tbl := New[int](4)
	tbl.Acquire(Caller, 1, 10)
	tbl.Acquire(Caller, 1, 11)
	tbl.Acquire(Caller, 1, 12)
	tbl.Release(1)

	var seen []int
	tbl.Each(func(i int, e Entry[int]) { seen = append(seen, i) })
	assert.Equal(t, []int{0, 2}, seen)
}

// Random acquire/release sequences never leak: free + outstanding == size.
func TestNoLeak(t *testing.T) {
	const n = 8
	tbl := New[int](n)
	rng := rand.New(rand.NewSource(1))
	outstanding := map[int]bool{}

	for step := 0; step < 10000; step++ {
		if rng.Intn(2) == 0 {
			i, err := tbl.Acquire(Caller, 1, step)
			if len(outstanding) == n {
				require.ErrorIs(t, err, ErrFull)
				continue
			}
			require.NoError(t, err)
			require.False(t, outstanding[i])
			outstanding[i] = true
		} else {
			for i := range outstanding {
				tbl.Release(i)
				delete(outstanding, i)
				break
			}
		}
		require.Equal(t, n-len(outstanding), tbl.Free())
	}
}
