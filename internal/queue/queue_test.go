package queue

import (
	"math/rand"
	"testing"
)

type item struct {
	id     int
	locked bool
}

func collect(q *Queue[item]) (ids []int, prios []uint8) {
	q.Each(func(v item, p uint8) bool {
		ids = append(ids, v.id)
		prios = append(prios, p)
		return true
	})
	return ids, prios
}

func TestEnqueueOrder(t *testing.T) {
	tests := []struct {
		name  string
		prios []uint8
		want  []int
	}{
		{"ascending", []uint8{1, 2, 3}, []int{0, 1, 2}},
		{"descending", []uint8{3, 2, 1}, []int{2, 1, 0}},
		{"mixed", []uint8{10, 1, 5}, []int{1, 2, 0}},
		{"ties keep arrival order", []uint8{5, 5, 1, 5}, []int{2, 0, 1, 3}},
		{"highest priority at head", []uint8{0, 0, 0}, []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[item]()
			for i, p := range tt.prios {
				q.Enqueue(item{id: i}, p)
			}
			ids, _ := collect(q)
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

// Any enqueue sequence yields non-decreasing priority, arrival order on ties.
func TestPriorityOrderRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := New[item]()
	for i := 0; i < 500; i++ {
		q.Enqueue(item{id: i}, uint8(rng.Intn(8)))
	}
	if q.Len() != 500 {
		t.Fatalf("Len() = %d, want 500", q.Len())
	}

	ids, prios := collect(q)
	for i := 1; i < len(ids); i++ {
		if prios[i] < prios[i-1] {
			t.Fatalf("priority decreased at %d: %d < %d", i, prios[i], prios[i-1])
		}
		if prios[i] == prios[i-1] && ids[i] < ids[i-1] {
			t.Fatalf("arrival order broken at %d: id %d after %d", i, ids[i], ids[i-1])
		}
	}
}

// A locked entry is skipped without ending the scan and stays queued.
func TestDrainSkipLocked(t *testing.T) {
	q := New[item]()
	q.Enqueue(item{id: 5, locked: true}, 1)
	q.Enqueue(item{id: 3}, 2)
	q.Enqueue(item{id: 7}, 3)

	free := 1
	var issued []int
	n := q.Drain(func(v item, _ uint8) Verdict {
		if v.locked {
			return Skip
		}
		if free == 0 {
			return Stop
		}
		free--
		issued = append(issued, v.id)
		return Issued
	})

	if n != 1 || len(issued) != 1 || issued[0] != 3 {
		t.Fatalf("issued %v, want [3]", issued)
	}
	ids, _ := collect(q)
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 7 {
		t.Fatalf("remaining %v, want [5 7]", ids)
	}

	// next opportunity promotes 7 past the still-locked 5
	free = 1
	issued = nil
	q.Drain(func(v item, _ uint8) Verdict {
		if v.locked {
			return Skip
		}
		if free == 0 {
			return Stop
		}
		free--
		issued = append(issued, v.id)
		return Issued
	})
	if len(issued) != 1 || issued[0] != 7 {
		t.Fatalf("issued %v, want [7]", issued)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}

func TestDrainSkipsArePrefixStable(t *testing.T) {
	q := New[item]()
	for i := 0; i < 6; i++ {
		q.Enqueue(item{id: i, locked: i%2 == 0}, 1)
	}
	q.Drain(func(v item, _ uint8) Verdict {
		if v.locked {
			return Skip
		}
		return Issued
	})
	ids, _ := collect(q)
	want := []int{0, 2, 4}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("remaining %v, want %v", ids, want)
		}
	}
}

func TestDrainStop(t *testing.T) {
	q := New[item]()
	q.Enqueue(item{id: 1}, 1)
	q.Enqueue(item{id: 2}, 2)
	visits := 0
	n := q.Drain(func(item, uint8) Verdict {
		visits++
		return Stop
	})
	if n != 0 || visits != 1 || q.Len() != 2 {
		t.Fatalf("n=%d visits=%d len=%d", n, visits, q.Len())
	}
}

func TestRemove(t *testing.T) {
	q := New[item]()
	for i := 0; i < 4; i++ {
		q.Enqueue(item{id: i}, uint8(i))
	}
	v, ok := q.Remove(func(v item) bool { return v.id == 2 })
	if !ok || v.id != 2 {
		t.Fatalf("Remove() = %v, %v", v, ok)
	}
	if _, ok := q.Remove(func(v item) bool { return v.id == 2 }); ok {
		t.Fatal("second Remove() should miss")
	}
	if _, ok := q.Remove(func(v item) bool { return v.id == 0 }); !ok {
		t.Fatal("Remove() of head failed")
	}
	ids, _ := collect(q)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("remaining %v", ids)
	}
}

func TestFlush(t *testing.T) {
	q := New[item]()
	q.Enqueue(item{id: 1}, 9)
	q.Enqueue(item{id: 2}, 0)
	out := q.Flush()
	if len(out) != 2 || out[0].id != 2 || out[1].id != 1 {
		t.Fatalf("Flush() = %v", out)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after flush", q.Len())
	}
	// reuse after flush draws from the pool
	q.Enqueue(item{id: 3}, 1)
	if q.Len() != 1 {
		t.Fatalf("Len() = %d", q.Len())
	}
}

func BenchmarkEnqueueDrain(b *testing.B) {
	q := New[item]()
	for i := 0; i < b.N; i++ {
		q.Enqueue(item{id: i}, uint8(i%16))
		if q.Len() > 64 {
			q.Drain(func(item, uint8) Verdict { return Issued })
		}
	}
}
