package queue

import "sync"

// nodePool recycles queue nodes. Each Queue owns its pool so typed nodes
// never mix.
type nodePool[T any] struct {
	p sync.Pool
}

func newNodePool[T any]() *nodePool[T] {
	return &nodePool[T]{p: sync.Pool{New: func() any { return new(node[T]) }}}
}

// get returns a cleared node.
func (np *nodePool[T]) get(v T, prio uint8) *node[T] {
	n := np.p.Get().(*node[T])
	n.value = v
	n.prio = prio
	n.next = nil
	return n
}

// put clears the node so the pool does not pin the value.
func (np *nodePool[T]) put(n *node[T]) {
	var zero T
	n.value = zero
	n.next = nil
	np.p.Put(n)
}
