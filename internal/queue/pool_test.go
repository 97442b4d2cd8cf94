package queue

import "testing"

func TestNodePoolClearsValue(t *testing.T) {
	np := newNodePool[*int]()
	v := 42
	n := np.get(&v, 3)
	if n.value != &v || n.prio != 3 || n.next != nil {
		t.Fatalf("get() = %+v", n)
	}
	n.next = n
	np.put(n)
	if n.value != nil || n.next != nil {
		t.Error("put() must clear the node")
	}
}

func BenchmarkNodePool(b *testing.B) {
	np := newNodePool[int]()
	for i := 0; i < b.N; i++ {
		np.put(np.get(i, 0))
	}
}
