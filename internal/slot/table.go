// Package slot implements the fixed-size table that correlates outstanding
// hardware commands with their owners.
package slot

import (
	"errors"
	"fmt"
)

// ErrFull is returned by Acquire when every slot is occupied.
var ErrFull = errors.New("no free command slot")

// Kind describes what occupies a slot.
type Kind uint8

const (
	Empty    Kind = iota
	Internal      // driver-issued command awaited by a poller
	Caller        // request owned by an upstream caller
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Internal:
		return "internal"
	case Caller:
		return "caller"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Entry is one slot. Value is the zero value iff Kind is Empty.
type Entry[T any] struct {
	Kind    Kind
	Service uint8
	Value   T
}

// Table is not safe for concurrent use. The controller lock serializes it.
type Table[T any] struct {
	entries []Entry[T]
	used    int
}

// New returns a table with n slots.
func New[T any](n int) *Table[T] {
	if n <= 0 {
		panic(fmt.Sprintf("slot: invalid table size %d", n))
	}
	return &Table[T]{entries: make([]Entry[T], n)}
}

// Acquire occupies the first empty slot and returns its index.
func (t *Table[T]) Acquire(kind Kind, service uint8, v T) (int, error) {
	if kind == Empty {
		panic("slot: acquire with empty kind")
	}
	if t.used == len(t.entries) {
		return -1, ErrFull
	}
	for i := range t.entries {
		if t.entries[i].Kind == Empty {
			t.entries[i] = Entry[T]{Kind: kind, Service: service, Value: v}
			t.used++
			return i, nil
		}
	}
	return -1, ErrFull
}

// Release empties slot i and returns what occupied it. Releasing an empty
// slot is a bookkeeping bug and panics.
func (t *Table[T]) Release(i int) Entry[T] {
	if i < 0 || i >= len(t.entries) {
		panic(fmt.Sprintf("slot: release of out-of-range index %d", i))
	}
	e := t.entries[i]
	if e.Kind == Empty {
		panic(fmt.Sprintf("slot: double release of index %d", i))
	}
	t.entries[i] = Entry[T]{}
	t.used--
	return e
}

// Lookup returns slot i. ok is false when i is out of range.
func (t *Table[T]) Lookup(i int) (e Entry[T], ok bool) {
	if i < 0 || i >= len(t.entries) {
		return e, false
	}
	return t.entries[i], true
}

// Set replaces the value of an occupied slot.
func (t *Table[T]) Set(i int, v T) {
	if t.entries[i].Kind == Empty {
		panic(fmt.Sprintf("slot: set on empty index %d", i))
	}
	t.entries[i].Value = v
}

// Each calls fn for every occupied slot in index order.
func (t *Table[T]) Each(fn func(i int, e Entry[T])) {
	for i := range t.entries {
		if t.entries[i].Kind != Empty {
			fn(i, t.entries[i])
		}
	}
}

// Len returns the number of slots.
func (t *Table[T]) Len() int { return len(t.entries) }

// Used returns the number of occupied slots.
func (t *Table[T]) Used() int { return t.used }

// Free returns the number of empty slots.
func (t *Table[T]) Free() int { return len(t.entries) - t.used }
