// Package merger folds ranked lists from several granularities into one
// top-k list.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/ranker"
)

// DefaultLimit applies when Merge is called with a non-positive limit.
const DefaultLimit = 10

// Merge sums the scores a document earns across lists and returns the limit
// best, highest score first and ties by ascending document id.
func Merge(lists [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	scores := make(map[uint64]float64)
	for _, list := range lists {
		for _, doc := range list {
			scores[doc.DocID] += doc.Score
		}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for id, score := range scores {
		heap.Push(h, ranker.ScoredDoc{DocID: id, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on rank, so the root is the weakest result.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
