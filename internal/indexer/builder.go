// Package indexer turns tokenized documents into partition files. The
// Builder keeps one in-memory partition per (granularity, key range) and
// flushes them, together with a manifest, into a fresh build directory.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/tracing"
)

// BuildDirPrefix starts the name of every build directory.
const BuildDirPrefix = "build-"

// FlushResult describes one completed flush.
type FlushResult struct {
	Dir          string
	ManifestPath string
	PageLengths  map[uint64]uint32
	Parts        int
	Bytes        int
}

// FlushHook runs after a flush is durable on disk.
type FlushHook func(ctx context.Context, res FlushResult) error

// Builder accumulates documents into build partitions. It is safe for
// concurrent use; the consumer and the flush loop share it.
type Builder struct {
	mu      sync.Mutex
	cfg     config.IndexerConfig
	opts    index.Options
	router  *shard.Router
	parts   map[segment.Granularity][]*index.Partition
	lengths map[uint64]uint32
	seq     int
	failed  error

	hooks   []FlushHook
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder creates a Builder writing below cfg.DataDir. Build directories
// left by earlier runs are kept and numbering continues after them.
func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) (*Builder, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	router, err := shard.NewRouter(cfg.BuildShards)
	if err != nil {
		return nil, fmt.Errorf("creating build shard router: %w", err)
	}
	b := &Builder{
		cfg:     cfg,
		opts:    PartitionOptions(cfg),
		router:  router,
		metrics: m,
		logger:  slog.Default().With("component", "builder"),
	}
	if err := b.recoverSequence(); err != nil {
		return nil, err
	}
	b.reset()
	return b, nil
}

// PartitionOptions returns the partition layout cfg describes.
func PartitionOptions(cfg config.IndexerConfig) index.Options {
	return index.Options{
		BucketCount:       cfg.BucketCount,
		ArenaChunkSize:    cfg.ArenaChunkSize,
		NodeChunkCapacity: cfg.NodeChunkCapacity,
		ArenaLimit:        cfg.ArenaLimit,
	}
}

// OnFlush registers a hook run after every successful flush, in
// registration order.
func (b *Builder) OnFlush(hook FlushHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, hook)
}

func (b *Builder) reset() {
	b.parts = make(map[segment.Granularity][]*index.Partition, len(segment.Granularities))
	for _, g := range segment.Granularities {
		parts := make([]*index.Partition, b.router.NumShards())
		for i := range parts {
			parts[i] = index.NewPartition(b.router.Range(i), b.opts)
		}
		b.parts[g] = parts
	}
	b.lengths = make(map[uint64]uint32)
}

// AddDocument inserts every word, pair and trine of doc. It returns false if
// the document is already part of the current build. When the build reaches
// cfg.MaxBuildDocs documents it is flushed before AddDocument returns.
//
// Arena exhaustion is reported as a fatal error and poisons the builder.
func (b *Builder) AddDocument(ctx context.Context, doc Document) (added bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failed != nil {
		return false, b.failed
	}
	if _, dup := b.lengths[doc.ID]; dup {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok || !pkgerrors.IsFatal(rerr) {
				panic(r)
			}
			b.failed = fmt.Errorf("indexing document %d: %w", doc.ID, rerr)
			b.logger.Error("build arena exhausted", "doc_id", doc.ID, "error", rerr)
			added, err = false, b.failed
		}
	}()

	plan, err := b.plan(doc)
	if err != nil {
		return false, err
	}
	for _, g := range segment.Granularities {
		parts := b.parts[g]
		inserted := 0
		for i, terms := range plan[g] {
			if len(terms) == 0 {
				continue
			}
			ordinal := parts[i].AddPage(doc.ID)
			for _, term := range terms {
				if err := parts[i].Insert(term, ordinal); err != nil {
					return false, fmt.Errorf("inserting %s %q of document %d: %w", g, term, doc.ID, err)
				}
			}
			inserted += len(terms)
		}
		b.metrics.TermsInserted(string(g), inserted)
	}
	b.lengths[doc.ID] = uint32(len(Terms(doc.Tokens, segment.Word)))
	b.metrics.DocIndexed()

	b.logger.Debug("document added",
		"doc_id", doc.ID,
		"token_count", b.lengths[doc.ID],
		"build_docs", len(b.lengths),
	)
	if len(b.lengths) >= b.cfg.MaxBuildDocs {
		b.logger.Info("build reached max size, flushing",
			"docs", len(b.lengths),
			"threshold", b.cfg.MaxBuildDocs,
		)
		if _, err := b.flushLocked(ctx); err != nil {
			return true, fmt.Errorf("flushing build: %w", err)
		}
	}
	return true, nil
}

// plan groups the terms of doc by granularity and build shard. It runs
// before any partition is touched, so a rejected document leaves no page
// behind. Only partitions that receive terms register the document.
func (b *Builder) plan(doc Document) (map[segment.Granularity][][]string, error) {
	plan := make(map[segment.Granularity][][]string, len(segment.Granularities))
	for _, g := range segment.Granularities {
		byShard := make([][]string, b.router.NumShards())
		for _, term := range Terms(doc.Tokens, g) {
			term = index.Truncate(term)
			if term == "" {
				return nil, fmt.Errorf("document %d: %w", doc.ID, pkgerrors.ErrEmptyTerm)
			}
			i := b.router.Route(term)
			if !b.parts[g][i].Range().Contains(term) {
				return nil, pkgerrors.Newf(pkgerrors.ErrKeyOutOfRange, "document %d: %s %q routed outside shard %d", doc.ID, g, term, i)
			}
			byShard[i] = append(byShard[i], term)
		}
		plan[g] = byShard
	}
	return plan, nil
}

// Pending returns the number of documents not flushed yet.
func (b *Builder) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lengths)
}

// Flush writes the current build, if any, and starts a new one. A zero
// FlushResult means there was nothing to write.
func (b *Builder) Flush(ctx context.Context) (FlushResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failed != nil {
		return FlushResult{}, b.failed
	}
	return b.flushLocked(ctx)
}

func (b *Builder) flushLocked(ctx context.Context) (FlushResult, error) {
	if len(b.lengths) == 0 {
		return FlushResult{}, nil
	}
	dir := filepath.Join(b.cfg.DataDir, fmt.Sprintf("%s%06d", BuildDirPrefix, b.seq))
	ctx = logger.WithRound(ctx, filepath.Base(dir))
	ctx, span := tracing.StartSpan(ctx, "build-flush", tracing.NewTraceID())
	log := logger.FromContext(ctx).With("component", "builder")

	res := FlushResult{
		Dir:          dir,
		ManifestPath: filepath.Join(dir, manifest.FileName),
		PageLengths:  b.lengths,
	}
	m := manifest.New()
	m.AddPageLengths(b.lengths)

	err := tracing.Phase(ctx, "write-partitions", func(context.Context) error {
		w := segment.NewWriter(dir)
		for _, g := range segment.Granularities {
			var parts []manifest.Part
			var arenaBytes int64
			for i, p := range b.parts[g] {
				arenaBytes += p.ArenaBytes()
				name := segment.FileName(g, i)
				_, n, err := w.Write(name, p)
				b.metrics.PartitionWritten("build", n, err)
				if err != nil {
					return fmt.Errorf("writing %s shard %d: %w", g, i, err)
				}
				parts = append(parts, manifest.NewPart(name, p.Range()))
				res.Bytes += n
				res.Parts++
			}
			b.metrics.SetArenaBytes(string(g), arenaBytes)
			m.SetParts(g, parts)
		}
		return nil
	})
	if err == nil {
		err = tracing.Phase(ctx, "write-manifest", func(context.Context) error {
			return m.Save(res.ManifestPath)
		})
	}
	span.SetAttr("docs", len(b.lengths))
	span.SetAttr("bytes", res.Bytes)
	span.End()
	span.Log(log)
	if err != nil {
		return FlushResult{}, err
	}

	b.seq++
	b.reset()
	log.Info("build flushed",
		"dir", dir,
		"docs", len(res.PageLengths),
		"parts", res.Parts,
		"bytes", res.Bytes,
	)
	for _, hook := range b.hooks {
		if err := hook(ctx, res); err != nil {
			log.Error("flush hook failed", "error", err)
		}
	}
	return res, nil
}

// StartFlushLoop flushes every cfg.FlushInterval until ctx is cancelled,
// then performs a final flush. The returned channel is closed once the
// final flush has finished.
func (b *Builder) StartFlushLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	interval := b.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				b.logger.Info("flush loop stopping, performing final flush")
				if _, err := b.Flush(context.WithoutCancel(ctx)); err != nil {
					b.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if b.Pending() > 0 {
					if _, err := b.Flush(ctx); err != nil {
						b.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
	return done
}

// recoverSequence continues numbering after the build directories already
// present in the data directory and after every build a merged manifest
// lists as a source, so pruned builds are never renumbered.
func (b *Builder) recoverSequence() error {
	entries, err := os.ReadDir(b.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("reading data directory: %w", err)
	}
	found := 0
	bump := func(seq int) {
		if seq >= b.seq {
			b.seq = seq + 1
		}
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(entry.Name(), BuildDirPrefix+"%d", &seq); err == nil {
			found++
			bump(seq)
			continue
		}
		m, ok, err := manifest.Load(filepath.Join(b.cfg.DataDir, entry.Name(), manifest.FileName))
		if err != nil {
			b.logger.Warn("skipping unreadable manifest during recovery", "dir", entry.Name(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		if seq, ok := m.LastSourceSeq(BuildDirPrefix); ok {
			bump(seq)
		}
	}
	b.logger.Info("build recovery complete", "existing_builds", found, "next_seq", b.seq)
	return nil
}
