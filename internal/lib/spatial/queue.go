package spatial

import "github.com/dpup/pctdiff/internal/lib/geo"

// candidate is a queued search entry: either a tree node or a single segment
type candidate struct {
	node     *node
	segment  geo.Segment
	distance float64 // meters, segments only
	key      orderKey
	index    int
}

// candidateQueue implements heap.Interface as a min-queue on key
type candidateQueue []*candidate

func (pq candidateQueue) Len() int { return len(pq) }

func (pq candidateQueue) Less(i, j int) bool {
	return pq[i].key < pq[j].key
}

func (pq candidateQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *candidateQueue) Push(x any) {
	item := x.(*candidate)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *candidateQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
