// Package ranker scores posting lists with the Atire variant of BM25.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
)

const (
	K1 = 0.9
	B  = 0.4
)

type ScoredDoc struct {
	DocID uint64  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Params carries the corpus statistics a score depends on.
type Params struct {
	TotalDocs    uint64
	AvgDocLength float64
}

// LengthFunc returns the token count of a document and whether it is known.
type LengthFunc func(docID uint64) (uint32, bool)

// IDF returns ln(N / df), or zero when either side is zero.
func IDF(totalDocs uint64, docFreq int) float64 {
	if totalDocs == 0 || docFreq <= 0 {
		return 0
	}
	return math.Log(float64(totalDocs) / float64(docFreq))
}

// ScoreTerm scores every document of one term's posting list. Entry ids
// must be global document ids. Documents whose length is unknown or zero are
// skipped. The result is sorted by document id.
func ScoreTerm(postings []index.Entry, params Params, length LengthFunc) []ScoredDoc {
	if len(postings) == 0 || params.AvgDocLength <= 0 {
		return nil
	}
	idf := IDF(params.TotalDocs, len(postings))
	out := make([]ScoredDoc, 0, len(postings))
	for _, p := range postings {
		l, ok := length(p.ID)
		if !ok || l == 0 {
			continue
		}
		tf := float64(p.Count)
		norm := K1 * (1 - B + B*float64(l)/params.AvgDocLength)
		out = append(out, ScoredDoc{
			DocID: p.ID,
			Score: idf * (K1 + 1) * tf / (norm + tf),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DocID < out[j].DocID
	})
	return out
}

// Rank sums the per-term scores of each document and returns them best
// first, ties broken by ascending document id. A positive limit keeps only
// the top results.
func Rank(postingsPerTerm map[string][]index.Entry, params Params, length LengthFunc, limit int) []ScoredDoc {
	scores := make(map[uint64]float64)
	for _, postings := range postingsPerTerm {
		for _, d := range ScoreTerm(postings, params, length) {
			scores[d.DocID] += d.Score
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		result = append(result, ScoredDoc{DocID: id, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
