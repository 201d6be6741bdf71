package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func buildManifests(t *testing.T, dir string) []string {
	t.Helper()
	b, err := indexer.NewBuilder(config.IndexerConfig{
		DataDir:       dir,
		BucketCount:   64,
		BuildShards:   2,
		MaxBuildDocs:  1000,
		FlushInterval: time.Hour,
	}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	var paths []string
	for _, docs := range [][]indexer.Document{
		{{ID: 1, Tokens: []string{"quick", "brown", "fox"}}},
		{{ID: 2, Tokens: []string{"lazy", "brown", "dog"}}},
	} {
		for _, d := range docs {
			_, err := b.AddDocument(ctx, d)
			require.NoError(t, err)
		}
		res, err := b.Flush(ctx)
		require.NoError(t, err)
		paths = append(paths, res.ManifestPath)
	}
	return paths
}

func TestSplit(t *testing.T) {
	out, err := execute(t, "split", "2")
	require.NoError(t, err)
	assert.Equal(t, "   0  [\"\", \"h\")\n   1  [\"h\", ∞)\n", out)

	_, err = execute(t, "split", "zero")
	assert.Error(t, err)
}

func TestInspectManifestAndPartition(t *testing.T) {
	paths := buildManifests(t, t.TempDir())

	out, err := execute(t, "inspect", paths[0])
	require.NoError(t, err)
	assert.Contains(t, out, "documents:       1")
	assert.Contains(t, out, "layout:          ok")
	assert.Contains(t, out, "word parts (2):")

	part := filepath.Join(filepath.Dir(paths[0]), segment.FileName(segment.Word, 0))
	out, err = execute(t, "inspect", part, "--terms", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "pages:       1")
	assert.Contains(t, out, `"brown"`)
}

func TestFindAndSearch(t *testing.T) {
	paths := buildManifests(t, t.TempDir())

	out, err := execute(t, "find", paths[0], "brown fox")
	require.NoError(t, err)
	assert.Contains(t, out, `"brown fox": 1 documents`)
	assert.Contains(t, out, "doc 1 ")

	out, err = execute(t, "search", paths[1], "-q", "brown dog", "--json")
	require.NoError(t, err)
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, uint64(2), res.Results[0].DocID)

	_, err = execute(t, "search", paths[0])
	assert.Error(t, err, "query flag is required")
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	paths := buildManifests(t, dir)
	outDir := filepath.Join(dir, "adhoc")

	out, err := execute(t, append([]string{"merge", "--out", outDir, "--shards", "3", "--threads", "2"}, paths...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "merged 2 manifests")
	assert.Contains(t, out, "documents: 2")

	m, ok, err := manifest.Load(filepath.Join(outDir, manifest.FileName))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, m.Parts(segment.Pair), 3)

	out, err = execute(t, "find", filepath.Join(outDir, manifest.FileName), "brown")
	require.NoError(t, err)
	assert.Contains(t, out, `"brown": 2 documents`)
}

func TestMergeDiscoversInputs(t *testing.T) {
	dir := t.TempDir()
	buildManifests(t, dir)
	t.Setenv("SP_INDEXER_DATA_DIR", dir)

	out, err := execute(t, "merge", "--out", filepath.Join(dir, "merged-000001"), "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "merged 2 manifests")
}

func TestMergeRoundsSkipFoldedBuilds(t *testing.T) {
	dir := t.TempDir()
	buildManifests(t, dir)
	t.Setenv("SP_INDEXER_DATA_DIR", dir)

	_, err := execute(t, "merge", "--out", filepath.Join(dir, "merged-000001"), "--no-progress")
	require.NoError(t, err)

	b, err := indexer.NewBuilder(config.IndexerConfig{
		DataDir:       dir,
		BucketCount:   64,
		BuildShards:   2,
		MaxBuildDocs:  1000,
		FlushInterval: time.Hour,
	}, nil)
	require.NoError(t, err)
	_, err = b.AddDocument(context.Background(), indexer.Document{ID: 3, Tokens: []string{"brown", "cat"}})
	require.NoError(t, err)
	_, err = b.Flush(context.Background())
	require.NoError(t, err)

	out, err := execute(t, "merge", "--out", filepath.Join(dir, "merged-000002"), "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "merged 2 manifests")
	assert.Contains(t, out, "documents: 3")

	out, err = execute(t, "find", filepath.Join(dir, "merged-000002", manifest.FileName), "brown")
	require.NoError(t, err)
	assert.Contains(t, out, `"brown": 3 documents`)
	for _, id := range []int{1, 2, 3} {
		assert.Contains(t, out, fmt.Sprintf("  doc %-12d count %-3d", id, 1))
	}

	_, err = execute(t, "merge", "--out", filepath.Join(dir, "merged-000003"), "--no-progress")
	assert.ErrorContains(t, err, "no unmerged manifests")
}
