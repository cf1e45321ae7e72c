package bus

import (
	"container/heap"

	"trading-systemv1/internal/model"
)

// item is one buffered event plus its insertion sequence, used to break
// ties between events of equal priority so that within a priority class
// delivery stays FIFO: priority only reorders among events already
// buffered, it never reorders arrival order within the same priority.
type item struct {
	evt model.Event
	seq uint64
}

// priorityQueue is a small container/heap.Interface implementation; see
// DESIGN.md for why this uses container/heap rather than a third-party
// priority queue.
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].evt.Priority != pq[j].evt.Priority {
		return pq[i].evt.Priority > pq[j].evt.Priority // higher priority pops first
	}
	return pq[i].seq < pq[j].seq // FIFO among equal priority
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(*item)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// oldestIndex returns the index of the item with the lowest seq (the
// oldest buffered item), used by the drop_oldest back-pressure policy.
func (pq priorityQueue) oldestIndex() int {
	best := 0
	for i := 1; i < len(pq); i++ {
		if pq[i].seq < pq[best].seq {
			best = i
		}
	}
	return best
}

var _ = heap.Interface(&priorityQueue{})
