package spatial

import (
	"cmp"
	"container/heap"
	"math"
	"runtime"
	"slices"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

// nodeCapacity is the maximum fan-out of every tree node
const nodeCapacity = 16

// Index is an immutable R-tree of line segments supporting nearest-segment queries.
// It is safe for concurrent use once built.
type Index struct {
	root *node
	size int
}

type node struct {
	bound    orb.Bound
	children []*node       // internal nodes
	segments []geo.Segment // leaves
}

func (n *node) isLeaf() bool {
	return n.children == nil
}

// Build explodes polylines into consecutive segments and bulk-loads them into a new Index
func Build(lines []geo.Polyline) *Index {
	segments := explode(lines)
	if len(segments) == 0 {
		return &Index{}
	}
	return &Index{root: bulkLoad(segments), size: len(segments)}
}

// Len returns the number of indexed segments
func (idx *Index) Len() int {
	return idx.size
}

// Bound returns the planar bounding box of every indexed segment
func (idx *Index) Bound() (orb.Bound, bool) {
	if idx.root == nil {
		return orb.Bound{}, false
	}
	return idx.root.bound, true
}

// Nearest returns the segment closest to the point under geo.PointToSegment.
// The second result is false only when the index is empty.
func (idx *Index) Nearest(point geo.Point) (geo.Segment, bool) {
	seg, _, ok := idx.nearest(point)
	return seg, ok
}

// NearestDistance returns the distance in meters to the closest segment, or +Inf for an empty index
func (idx *Index) NearestDistance(point geo.Point) float64 {
	_, distance, ok := idx.nearest(point)
	if !ok {
		return math.Inf(1)
	}
	return distance
}

// nearest runs a best-first search. Nodes are queued by a lower bound of the distance to anything
// inside their box, segments by their exact distance, so the first segment popped is the closest.
func (idx *Index) nearest(point geo.Point) (geo.Segment, float64, bool) {
	if idx.root == nil {
		return geo.Segment{}, 0, false
	}

	pq := &candidateQueue{}
	heap.Push(pq, &candidate{node: idx.root, key: keyOf(boxLowerBound(point, idx.root.bound))})

	for pq.Len() > 0 {
		c := heap.Pop(pq).(*candidate)
		if c.node == nil {
			return c.segment, c.distance, true
		}

		if c.node.isLeaf() {
			for _, seg := range c.node.segments {
				distance := geo.PointToSegment(point, seg.Start, seg.End)
				heap.Push(pq, &candidate{segment: seg, distance: distance, key: keyOf(distance)})
			}
			continue
		}

		for _, child := range c.node.children {
			heap.Push(pq, &candidate{node: child, key: keyOf(boxLowerBound(point, child.bound))})
		}
	}

	return geo.Segment{}, 0, false
}

// explode flattens polylines into segments. Each line writes into its own pre-computed slot range.
func explode(lines []geo.Polyline) []geo.Segment {
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + max(len(line)-1, 0)
	}

	segments := make([]geo.Segment, offsets[len(lines)])
	if len(segments) == 0 {
		return segments
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, line := range lines {
		if len(line) < 2 {
			continue
		}
		g.Go(func() error {
			copy(segments[offsets[i]:offsets[i+1]], line.Segments())
			return nil
		})
	}
	_ = g.Wait()

	return segments
}

// bulkLoad packs segments bottom-up with Sort-Tile-Recursive ordering
func bulkLoad(segments []geo.Segment) *node {
	groups := tile(segments, func(s geo.Segment) orb.Point { return s.Bound().Center() })

	level := make([]*node, len(groups))
	for i, group := range groups {
		n := &node{segments: group, bound: group[0].Bound()}
		for _, seg := range group[1:] {
			n.bound = n.bound.Union(seg.Bound())
		}
		level[i] = n
	}

	for len(level) > 1 {
		groups := tile(level, func(n *node) orb.Point { return n.bound.Center() })

		next := make([]*node, len(groups))
		for i, group := range groups {
			n := &node{children: group, bound: group[0].bound}
			for _, child := range group[1:] {
				n.bound = n.bound.Union(child.bound)
			}
			next[i] = n
		}
		level = next
	}

	return level[0]
}

// tile sorts items into vertical slabs by longitude, then each slab by latitude, and cuts the result
// into runs of at most nodeCapacity items.
func tile[T any](items []T, center func(T) orb.Point) [][]T {
	nodeCount := (len(items) + nodeCapacity - 1) / nodeCapacity
	slabCount := int(math.Ceil(math.Sqrt(float64(nodeCount))))
	slabSize := slabCount * nodeCapacity

	slices.SortFunc(items, func(a, b T) int {
		return cmp.Compare(center(a)[0], center(b)[0])
	})

	groups := make([][]T, 0, nodeCount)
	for start := 0; start < len(items); start += slabSize {
		slab := items[start:min(start+slabSize, len(items))]
		slices.SortFunc(slab, func(a, b T) int {
			return cmp.Compare(center(a)[1], center(b)[1])
		})
		for i := 0; i < len(slab); i += nodeCapacity {
			end := min(i+nodeCapacity, len(slab))
			groups = append(groups, slab[i:end:end])
		}
	}
	return groups
}
