// Package spatial indexes coordinates in a 2D k-d tree for candidate
// discovery. Only the plane position is indexed; the Vivaldi height is
// a latency artifact, not a geometric one.
package spatial

import (
	"sort"

	"github.com/alice-sync/presence/coord"
)

// Entry is an indexed point: a party commitment and its coordinate.
type Entry struct {
	ID    uint64
	Coord coord.Coord
}

const none = -1

// node is stored in a flat slice for cache-friendly traversal.
type node struct {
	entry Entry
	// axis 0 splits on x, 1 on y.
	axis        uint8
	left, right int
}

// Tree is a 2D k-d tree. Single-writer, multi-reader; concurrent
// inserts must be externally synchronized.
type Tree struct {
	nodes []node
	root  int
}

// New returns an empty tree. Incremental Insert does not rebalance;
// bulk loads should use Build.
func New() *Tree {
	return &Tree{root: none}
}

// Build constructs a balanced tree by recursive median split.
func Build(entries []Entry) *Tree {
	t := &Tree{
		nodes: make([]node, 0, len(entries)),
		root:  none,
	}
	if len(entries) == 0 {
		return t
	}
	scratch := append([]Entry(nil), entries...)
	t.root = t.build(scratch, 0)
	return t
}

func (t *Tree) build(entries []Entry, depth int) int {
	axis := uint8(depth % 2)
	sort.Slice(entries, func(i, j int) bool {
		if axis == 0 {
			return entries[i].Coord.X < entries[j].Coord.X
		}
		return entries[i].Coord.Y < entries[j].Coord.Y
	})

	mid := len(entries) / 2
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{
		entry: entries[mid],
		axis:  axis,
		left:  none,
		right: none,
	})

	if mid > 0 {
		left := t.build(entries[:mid], depth+1)
		t.nodes[idx].left = left
	}
	if mid+1 < len(entries) {
		right := t.build(entries[mid+1:], depth+1)
		t.nodes[idx].right = right
	}
	return idx
}

// Insert adds a point by leaf descent. Expected O(log n) on balanced
// input; the tree is not self-balancing.
func (t *Tree) Insert(e Entry) {
	idx := len(t.nodes)
	if t.root == none {
		t.nodes = append(t.nodes, node{entry: e, axis: 0, left: none, right: none})
		t.root = idx
		return
	}

	cur := t.root
	depth := 0
	for {
		n := &t.nodes[cur]
		var left bool
		if n.axis == 0 {
			left = e.Coord.X < n.entry.Coord.X
		} else {
			left = e.Coord.Y < n.entry.Coord.Y
		}
		if left {
			if n.left == none {
				n.left = idx
				break
			}
			cur = n.left
		} else {
			if n.right == none {
				n.right = idx
				break
			}
			cur = n.right
		}
		depth++
	}
	t.nodes = append(t.nodes, node{
		entry: e,
		axis:  uint8((depth + 1) % 2),
		left:  none,
		right: none,
	})
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Empty() bool {
	return len(t.nodes) == 0
}

// RangeQuery returns all entries whose plane distance to center is at
// most radius. Subtrees whose splitting hyperplane lies beyond the
// radius are pruned. Result order is traversal order; callers must not
// rely on anything beyond set equivalence.
func (t *Tree) RangeQuery(center coord.Coord, radius float64) []Entry {
	var results []Entry
	if t.root != none {
		t.rangeQuery(t.root, center, radius, &results)
	}
	return results
}

func (t *Tree) rangeQuery(idx int, center coord.Coord, radius float64, results *[]Entry) {
	n := &t.nodes[idx]
	if n.entry.Coord.Distance2D(center) <= radius {
		*results = append(*results, n.entry)
	}

	diff := splitDiff(center, n)
	near, far := n.left, n.right
	if diff >= 0 {
		near, far = far, near
	}
	if near != none {
		t.rangeQuery(near, center, radius, results)
	}
	if far != none && abs(diff) <= radius {
		t.rangeQuery(far, center, radius, results)
	}
}

// Nearest returns the entry closest to q under the full Vivaldi metric
// (heights included), or false on an empty tree.
func (t *Tree) Nearest(q coord.Coord) (Entry, float64, bool) {
	if t.root == none {
		return Entry{}, 0, false
	}
	best := t.nodes[t.root].entry
	bestDist := best.Coord.Distance(q)
	t.nearest(t.root, q, &best, &bestDist)
	return best, bestDist, true
}

func (t *Tree) nearest(idx int, q coord.Coord, best *Entry, bestDist *float64) {
	n := &t.nodes[idx]
	if d := n.entry.Coord.Distance(q); d < *bestDist {
		*best, *bestDist = n.entry, d
	}

	diff := splitDiff(q, n)
	near, far := n.left, n.right
	if diff >= 0 {
		near, far = far, near
	}
	if near != none {
		t.nearest(near, q, best, bestDist)
	}
	// The hyperplane distance is a lower bound for the far side
	// (ignoring heights).
	if far != none && abs(diff) < *bestDist {
		t.nearest(far, q, best, bestDist)
	}
}

func splitDiff(q coord.Coord, n *node) float64 {
	if n.axis == 0 {
		return q.X - n.entry.Coord.X
	}
	return q.Y - n.entry.Coord.Y
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
