package detour

import (
	"container/heap"

	"github.com/gorustyt/navbake/common"
)

const (
	DT_NODE_OPEN   = 0x01
	DT_NODE_CLOSED = 0x02
)

type DtNodeIndex uint32

const DT_NULL_IDX = ^DtNodeIndex(0)

type DtNode struct {
	Pos    [3]float32 ///< Position of the node.
	Cost   float32    ///< Cost from previous node to current node.
	Total  float32    ///< Cost up to the node.
	Pidx   uint32     ///< Index to parent node, plus one. Zero means no parent.
	Flags  uint32     ///< Node flags. A combination of DtNodeFlags.
	Id     DtPolyRef  ///< Polygon ref the node corresponds to.
	_index int        // position in the open list heap
	idx    uint32     // one based position in the pool
}

func (node *DtNode) SetIndex(index int) { node._index = index }

func (node *DtNode) GetIndex() int { return node._index }

type NodeQueueIndex interface {
	SetIndex(index int)
	GetIndex() int
}

// nodeQueue is a binary heap that tracks each element's position so a node
// can be reprioritised in place after its total cost drops.
type nodeQueue[T NodeQueueIndex] struct {
	data []T
	less func(t1, t2 T) bool
}

func newNodeQueue[T NodeQueueIndex](capacity int, less func(t1, t2 T) bool) *nodeQueue[T] {
	return &nodeQueue[T]{data: make([]T, 0, capacity), less: less}
}

func (q *nodeQueue[T]) Reset() { q.data = q.data[:0] }

// Peek returns the top without removing it.
func (q *nodeQueue[T]) Peek() T { return q.data[0] }

// Poll removes and returns the top.
func (q *nodeQueue[T]) Poll() T { return heap.Pop(q).(T) }

// Modify restores heap order after v's priority decreased.
func (q *nodeQueue[T]) Modify(v T) { heap.Fix(q, v.GetIndex()) }

func (q *nodeQueue[T]) Offer(v T) { heap.Push(q, v) }

func (q *nodeQueue[T]) Empty() bool { return len(q.data) == 0 }

func (q *nodeQueue[T]) Len() int { return len(q.data) }

func (q *nodeQueue[T]) Less(i, j int) bool { return q.less(q.data[i], q.data[j]) }

func (q *nodeQueue[T]) Swap(i, j int) {
	q.data[i], q.data[j] = q.data[j], q.data[i]
	q.data[i].SetIndex(i)
	q.data[j].SetIndex(j)
}

func (q *nodeQueue[T]) Push(x any) {
	v := x.(T)
	v.SetIndex(len(q.data))
	q.data = append(q.data, v)
}

func (q *nodeQueue[T]) Pop() any {
	n := len(q.data) - 1
	v := q.data[n]
	var zero T
	q.data[n] = zero
	q.data = q.data[:n]
	v.SetIndex(-1)
	return v
}

func dtHashRef(a DtPolyRef) uint32 {
	a += ^(a << 15)
	a ^= (a >> 10)
	a += (a << 3)
	a ^= (a >> 6)
	a += ^(a << 11)
	a ^= (a >> 16)
	return uint32(a)
}

// DtNodePool is a fixed capacity set of search nodes keyed by polygon ref.
type DtNodePool struct {
	nodes    []DtNode
	first    []DtNodeIndex
	next     []DtNodeIndex
	maxNodes int
	hashSize int
}

func NewDtNodePool(maxNodes, hashSize int) *DtNodePool {
	common.AssertTrue(common.NextPow2(uint32(hashSize)) == uint32(hashSize))
	common.AssertTrue(maxNodes > 0)
	pool := &DtNodePool{
		nodes:    make([]DtNode, 0, maxNodes),
		first:    make([]DtNodeIndex, hashSize),
		next:     make([]DtNodeIndex, maxNodes),
		maxNodes: maxNodes,
		hashSize: hashSize,
	}
	pool.Clear()
	return pool
}

func (pool *DtNodePool) Clear() {
	for i := range pool.first {
		pool.first[i] = DT_NULL_IDX
	}
	pool.nodes = pool.nodes[:0]
}

// FindNode returns the node for id, or nil if it was never allocated.
func (pool *DtNodePool) FindNode(id DtPolyRef) *DtNode {
	bucket := dtHashRef(id) & uint32(pool.hashSize-1)
	for i := pool.first[bucket]; i != DT_NULL_IDX; i = pool.next[i] {
		if pool.nodes[i].Id == id {
			return &pool.nodes[i]
		}
	}
	return nil
}

// GetNode returns the node for id, allocating it if needed. It returns nil
// once the pool is exhausted.
func (pool *DtNodePool) GetNode(id DtPolyRef) *DtNode {
	if n := pool.FindNode(id); n != nil {
		return n
	}
	if len(pool.nodes) >= pool.maxNodes {
		return nil
	}
	i := DtNodeIndex(len(pool.nodes))
	pool.nodes = append(pool.nodes, DtNode{Id: id, _index: -1, idx: uint32(i) + 1})

	bucket := dtHashRef(id) & uint32(pool.hashSize-1)
	pool.next[i] = pool.first[bucket]
	pool.first[bucket] = i
	return &pool.nodes[i]
}

// GetNodeIdx returns the one based index of node; zero for nil.
func (pool *DtNodePool) GetNodeIdx(node *DtNode) uint32 {
	if node == nil {
		return 0
	}
	return node.idx
}

func (pool *DtNodePool) GetNodeAtIdx(idx uint32) *DtNode {
	if idx == 0 || int(idx) > len(pool.nodes) {
		return nil
	}
	return &pool.nodes[idx-1]
}

func (pool *DtNodePool) GetMaxNodes() int { return pool.maxNodes }

func (pool *DtNodePool) GetNodeCount() int { return len(pool.nodes) }
