package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
)

func lengths(m map[uint64]uint32) LengthFunc {
	return func(id uint64) (uint32, bool) {
		l, ok := m[id]
		return l, ok
	}
}

func TestScoreTermAverageLengthSingleHit(t *testing.T) {
	scores := ScoreTerm(
		[]index.Entry{{ID: 1, Count: 1}},
		Params{TotalDocs: 2, AvgDocLength: 5},
		lengths(map[uint64]uint32{1: 5, 2: 5}),
	)
	require.Len(t, scores, 1)
	assert.Equal(t, uint64(1), scores[0].DocID)
	assert.InDelta(t, math.Ln2, scores[0].Score, 1e-12)
}

func TestScoreTermFormula(t *testing.T) {
	params := Params{TotalDocs: 10, AvgDocLength: 4}
	scores := ScoreTerm(
		[]index.Entry{{ID: 3, Count: 2}, {ID: 7, Count: 1}},
		params,
		lengths(map[uint64]uint32{3: 8, 7: 2}),
	)
	require.Len(t, scores, 2)

	idf := math.Log(10.0 / 2.0)
	want3 := idf * 1.9 * 2 / (0.9*(1-0.4+0.4*2) + 2)
	want7 := idf * 1.9 * 1 / (0.9*(1-0.4+0.4*0.5) + 1)
	assert.InDelta(t, want3, scores[0].Score, 1e-12)
	assert.InDelta(t, want7, scores[1].Score, 1e-12)
}

func TestScoreTermSkipsUnknownAndEmptyDocuments(t *testing.T) {
	scores := ScoreTerm(
		[]index.Entry{{ID: 1, Count: 1}, {ID: 2, Count: 1}, {ID: 3, Count: 1}},
		Params{TotalDocs: 6, AvgDocLength: 3},
		lengths(map[uint64]uint32{1: 3, 2: 0}),
	)
	require.Len(t, scores, 1)
	assert.Equal(t, uint64(1), scores[0].DocID)
}

func TestScoreTermSortsByDocumentID(t *testing.T) {
	scores := ScoreTerm(
		[]index.Entry{{ID: 9, Count: 1}, {ID: 2, Count: 4}, {ID: 5, Count: 1}},
		Params{TotalDocs: 20, AvgDocLength: 3},
		lengths(map[uint64]uint32{2: 3, 5: 3, 9: 3}),
	)
	ids := make([]uint64, len(scores))
	for i, s := range scores {
		ids[i] = s.DocID
	}
	assert.Equal(t, []uint64{2, 5, 9}, ids)
}

func TestScoreTermEmptyCorpus(t *testing.T) {
	assert.Empty(t, ScoreTerm([]index.Entry{{ID: 1, Count: 1}}, Params{}, lengths(nil)))
	assert.Zero(t, IDF(0, 1))
	assert.Zero(t, IDF(5, 0))
}

func TestRankSumsAndOrders(t *testing.T) {
	params := Params{TotalDocs: 4, AvgDocLength: 2}
	ls := lengths(map[uint64]uint32{1: 2, 2: 2, 3: 2, 4: 2})
	ranked := Rank(map[string][]index.Entry{
		"fox":   {{ID: 1, Count: 1}, {ID: 2, Count: 1}},
		"hunts": {{ID: 2, Count: 1}},
	}, params, ls, 0)

	require.Len(t, ranked, 2)
	assert.Equal(t, uint64(2), ranked[0].DocID)
	assert.Equal(t, uint64(1), ranked[1].DocID)
	fox := math.Log(2) * 1.9 / (0.9 + 1)
	hunts := math.Log(4) * 1.9 / (0.9 + 1)
	assert.InDelta(t, fox+hunts, ranked[0].Score, 1e-12)
	assert.InDelta(t, fox, ranked[1].Score, 1e-12)

	top := Rank(map[string][]index.Entry{
		"fox": {{ID: 3, Count: 1}, {ID: 1, Count: 1}},
	}, params, ls, 1)
	require.Len(t, top, 1)
	assert.Equal(t, uint64(1), top[0].DocID, "ties go to the lower document id")
}
