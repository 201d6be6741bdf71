package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
)

func testConfig(t *testing.T) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		DataDir:       t.TempDir(),
		BucketCount:   64,
		BuildShards:   4,
		MaxBuildDocs:  100,
		FlushInterval: time.Hour,
	}
}

func loadTerm(t *testing.T, mpath string, g segment.Granularity, term string) ([]index.Entry, []uint64) {
	t.Helper()
	m, ok, err := manifest.Load(mpath)
	require.NoError(t, err)
	require.True(t, ok)
	part, ok := m.Lookup(g, term)
	require.True(t, ok)
	p, ok, err := segment.Read(part.Resolve(mpath), part.Range(), index.Options{})
	require.NoError(t, err)
	require.True(t, ok)
	posting, found := p.Find(term)
	if !found {
		return nil, p.PageIDs()
	}
	entries, err := posting.Entries()
	require.NoError(t, err)
	return entries, p.PageIDs()
}

func TestBuilderFlushWritesPartitionsAndManifest(t *testing.T) {
	cfg := testConfig(t)
	m := metrics.New(prometheus.NewRegistry())
	b, err := NewBuilder(cfg, m)
	require.NoError(t, err)
	ctx := context.Background()

	var hooked []FlushResult
	b.OnFlush(func(_ context.Context, res FlushResult) error {
		hooked = append(hooked, res)
		return nil
	})

	added, err := b.AddDocument(ctx, Document{ID: 1, Tokens: []string{"the", "quick", "fox", "fox"}})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = b.AddDocument(ctx, Document{ID: 2, Tokens: []string{"fox", "hunts"}})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = b.AddDocument(ctx, Document{ID: 1, Tokens: []string{"again"}})
	require.NoError(t, err)
	assert.False(t, added, "a document is only indexed once per build")

	res, err := b.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DataDir, "build-000000"), res.Dir)
	assert.Equal(t, 12, res.Parts)
	require.Len(t, hooked, 1)
	assert.Equal(t, map[uint64]uint32{1: 4, 2: 2}, hooked[0].PageLengths)
	assert.Zero(t, b.Pending())

	entries, pages := loadTerm(t, res.ManifestPath, segment.Word, "fox")
	assert.Equal(t, []uint64{1, 2}, pages)
	assert.Equal(t, []index.Entry{{ID: 0, Count: 2}, {ID: 1, Count: 1}}, entries)

	entries, _ = loadTerm(t, res.ManifestPath, segment.Pair, "fox hunts")
	assert.Equal(t, []index.Entry{{ID: 1, Count: 1}}, entries)

	entries, _ = loadTerm(t, res.ManifestPath, segment.Trine, "the quick fox")
	assert.Equal(t, []index.Entry{{ID: 0, Count: 1}}, entries)

	man, _, err := manifest.Load(res.ManifestPath)
	require.NoError(t, err)
	require.NoError(t, man.Validate())
	assert.InDelta(t, 3.0, man.AveragePageLength, 1e-9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.PartitionFlushesTotal.WithLabelValues("ok")))
}

func TestBuilderRegistersPagesWhereTermsLand(t *testing.T) {
	b, err := NewBuilder(testConfig(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.AddDocument(ctx, Document{ID: 1, Tokens: []string{"apple"}})
	require.NoError(t, err)
	_, err = b.AddDocument(ctx, Document{ID: 2, Tokens: []string{"zebra"}})
	require.NoError(t, err)
	res, err := b.Flush(ctx)
	require.NoError(t, err)

	_, pages := loadTerm(t, res.ManifestPath, segment.Word, "apple")
	assert.Equal(t, []uint64{1}, pages)
	_, pages = loadTerm(t, res.ManifestPath, segment.Word, "zebra")
	assert.Equal(t, []uint64{2}, pages)

	for _, g := range []segment.Granularity{segment.Pair, segment.Trine} {
		_, pages = loadTerm(t, res.ManifestPath, g, "apple zebra")
		assert.Empty(t, pages, "single-token documents have no %s terms", g)
	}
}

func TestBuilderRejectedDocumentLeavesNoPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.BuildShards = 2
	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()

	// Route "kite" to the first partition, whose range ends at "h".
	good := b.router
	b.router, err = shard.NewRouterFromBoundaries([]string{"", "t"})
	require.NoError(t, err)
	doc := Document{ID: 9, Tokens: []string{"apple", "kite"}}
	_, err = b.AddDocument(ctx, doc)
	require.ErrorIs(t, err, pkgerrors.ErrKeyOutOfRange)
	assert.Zero(t, b.Pending())
	for _, g := range segment.Granularities {
		for i, p := range b.parts[g] {
			assert.Zero(t, p.PageCount(), "%s partition %d", g, i)
		}
	}

	b.router = good
	added, err := b.AddDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, added)
	res, err := b.Flush(ctx)
	require.NoError(t, err)
	entries, pages := loadTerm(t, res.ManifestPath, segment.Word, "apple")
	assert.Equal(t, []uint64{9}, pages)
	assert.Equal(t, []index.Entry{{ID: 0, Count: 1}}, entries)
}

func TestBuilderFlushEmptyIsNoop(t *testing.T) {
	b, err := NewBuilder(testConfig(t), nil)
	require.NoError(t, err)
	res, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestBuilderAutoFlushAndSequence(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBuildDocs = 2
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DataDir, "build-000007"), 0755))

	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	for id := uint64(1); id <= 5; id++ {
		_, err := b.AddDocument(ctx, Document{ID: id, Tokens: []string{"w"}})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.Pending())

	for _, dir := range []string{"build-000008", "build-000009"} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, dir, manifest.FileName))
		assert.NoError(t, err, dir)
	}
}

func TestBuilderArenaExhaustionIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.ArenaChunkSize = 64
	cfg.ArenaLimit = 128
	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)

	tokens := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		tokens = append(tokens, "tok"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	_, err = b.AddDocument(context.Background(), Document{ID: 1, Tokens: tokens})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFatal(err))

	_, err = b.AddDocument(context.Background(), Document{ID: 2, Tokens: []string{"x"}})
	assert.True(t, pkgerrors.IsFatal(err), "the builder stays failed")
}

func TestFlushLoopFinalFlush(t *testing.T) {
	cfg := testConfig(t)
	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := b.StartFlushLoop(ctx)
	_, err = b.AddDocument(ctx, Document{ID: 9, Tokens: []string{"late"}})
	require.NoError(t, err)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("flush loop did not stop")
	}
	_, err = os.Stat(filepath.Join(cfg.DataDir, "build-000000", manifest.FileName))
	assert.NoError(t, err)
}

// BenchmarkBuilderAddDocument measures per-document insert throughput across
// all three granularities.
func BenchmarkBuilderAddDocument(b *testing.B) {
	builder, err := NewBuilder(config.IndexerConfig{
		DataDir:      b.TempDir(),
		BucketCount:  1 << 12,
		BuildShards:  8,
		MaxBuildDocs: b.N + 1,
	}, nil)
	require.NoError(b, err)
	tokens := []string{"this", "is", "a", "benchmark", "document", "with", "several", "terms", "for", "testing", "the", "indexing", "path"}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.AddDocument(ctx, Document{ID: uint64(i), Tokens: tokens}); err != nil {
			b.Fatal(err)
		}
	}
}
