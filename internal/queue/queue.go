// Package queue implements the priority submission queue that holds
// requests accepted by the driver but not yet issued to hardware.
package queue

// Verdict is returned by a Drain visitor for each entry.
type Verdict int

const (
	// Issued removes the entry; it now occupies a slot.
	Issued Verdict = iota
	// Skip leaves the entry in place and continues with the next one.
	Skip
	// Stop leaves the entry and every later entry in place and ends the drain.
	Stop
)

type node[T any] struct {
	value T
	prio  uint8
	next  *node[T]
}

// Queue is a singly linked list kept in ascending priority order (0 is
// highest) with arrival order preserved between equal priorities. It is not
// safe for concurrent use.
type Queue[T any] struct {
	head *node[T]
	n    int
	pool *nodePool[T]
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{pool: newNodePool[T]()}
}

// Enqueue inserts v after every entry whose priority is <= prio.
func (q *Queue[T]) Enqueue(v T, prio uint8) {
	nn := q.pool.get(v, prio)

	if q.head == nil || q.head.prio > prio {
		nn.next = q.head
		q.head = nn
		q.n++
		return
	}
	p := q.head
	for p.next != nil && p.next.prio <= prio {
		p = p.next
	}
	nn.next = p.next
	p.next = nn
	q.n++
}

// Drain visits entries from the head. Entries for which fn returns Issued
// are unlinked; Skip keeps the entry and moves on; Stop ends the scan.
// It returns the number of entries issued.
func (q *Queue[T]) Drain(fn func(v T, prio uint8) Verdict) int {
	issued := 0
	var prev *node[T]
	for cur := q.head; cur != nil; {
		next := cur.next
		switch fn(cur.value, cur.prio) {
		case Issued:
			if prev == nil {
				q.head = next
			} else {
				prev.next = next
			}
			q.n--
			issued++
			q.pool.put(cur)
		case Skip:
			prev = cur
		case Stop:
			return issued
		}
		cur = next
	}
	return issued
}

// Remove unlinks the first entry for which match returns true.
func (q *Queue[T]) Remove(match func(v T) bool) (v T, ok bool) {
	var prev *node[T]
	for cur := q.head; cur != nil; prev, cur = cur, cur.next {
		if !match(cur.value) {
			continue
		}
		if prev == nil {
			q.head = cur.next
		} else {
			prev.next = cur.next
		}
		q.n--
		v = cur.value
		q.pool.put(cur)
		return v, true
	}
	return v, false
}

// Each calls fn for every entry in queue order until fn returns false.
func (q *Queue[T]) Each(fn func(v T, prio uint8) bool) {
	for cur := q.head; cur != nil; cur = cur.next {
		if !fn(cur.value, cur.prio) {
			return
		}
	}
}

// Flush removes every entry and returns them in queue order.
func (q *Queue[T]) Flush() []T {
	out := make([]T, 0, q.n)
	for cur := q.head; cur != nil; {
		next := cur.next
		out = append(out, cur.value)
		q.pool.put(cur)
		cur = next
	}
	q.head = nil
	q.n = 0
	return out
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int { return q.n }
