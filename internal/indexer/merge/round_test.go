package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
)

const (
	buildPattern = "build-*/" + manifest.FileName
	mergedPrefix = "merged-"
)

// runRound plans and runs the next round under root the way the merger
// binary does, and returns the merged manifest path.
func runRound(t *testing.T, root string) (Round, string) {
	t.Helper()
	round, err := PlanRound(root, buildPattern, mergedPrefix)
	require.NoError(t, err)
	require.NotEmpty(t, round.Builds, "nothing left to merge")
	res, err := newEngine(t, Options{Threads: 2, OutputShards: 3}).
		Run(context.Background(), round.Inputs(), round.OutDir)
	require.NoError(t, err)
	return round, res.ManifestPath
}

func TestPlanRoundWithoutHistory(t *testing.T) {
	root := t.TempDir()
	round, err := PlanRound(root, buildPattern, mergedPrefix)
	require.NoError(t, err)
	assert.Equal(t, 1, round.Number)
	assert.Equal(t, filepath.Join(root, "merged-000001"), round.OutDir)
	assert.Empty(t, round.Previous)
	assert.Empty(t, round.Inputs())
}

func TestRoundsDoNotRefoldBuilds(t *testing.T) {
	root := t.TempDir()
	build(t, root, []indexer.Document{{ID: 1, Tokens: []string{"kite"}}})
	round1, merged1 := runRound(t, root)
	assert.Len(t, round1.Builds, 1)
	assert.Empty(t, round1.Previous)

	build(t, root, []indexer.Document{{ID: 2, Tokens: []string{"kite"}}})
	round2, merged2 := runRound(t, root)
	assert.Equal(t, 2, round2.Number)
	assert.Equal(t, merged1, round2.Previous)
	assert.Equal(t, []string{filepath.Join(root, "build-000001", manifest.FileName)}, round2.Builds)

	assert.Equal(t, map[uint64]uint8{1: 1, 2: 1}, postings(t, merged2, segment.Word, "kite"))
	assert.Equal(t, []uint64{1, 2}, pageIDs(t, merged2, segment.Word, "kite"))

	round3, err := PlanRound(root, buildPattern, mergedPrefix)
	require.NoError(t, err)
	assert.Equal(t, merged2, round3.Previous)
	assert.Empty(t, round3.Builds)
}

func TestRoundsAfterPruning(t *testing.T) {
	root := t.TempDir()
	build(t, root, []indexer.Document{{ID: 1, Tokens: []string{"kite"}}})
	round1, merged1 := runRound(t, root)
	for _, in := range round1.Inputs() {
		require.NoError(t, os.RemoveAll(filepath.Dir(in)))
	}

	// A restarted builder must not reuse the pruned build number.
	next := build(t, root, []indexer.Document{{ID: 2, Tokens: []string{"kite", "owl"}}})
	assert.Equal(t, filepath.Join(root, "build-000001", manifest.FileName), next[0])

	round2, merged2 := runRound(t, root)
	assert.Equal(t, merged1, round2.Previous)
	assert.Equal(t, next, round2.Builds)
	assert.Equal(t, map[uint64]uint8{1: 1, 2: 1}, postings(t, merged2, segment.Word, "kite"))
	assert.Equal(t, map[uint64]uint8{2: 1}, postings(t, merged2, segment.Word, "owl"))

	m, _, err := manifest.Load(merged2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.TotalPages)
}
