// Package merge folds the partitions of many manifests into one set of
// output ranges. Output ranges never overlap, so each is merged by its own
// worker with no shared state; only the coordinator touches the manifest.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/shard"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/tracing"
)

// Options configures an Engine.
type Options struct {
	Threads      int
	OutputShards int
	Partition    index.Options
	Metrics      *metrics.Metrics
	// Progress, if set, is called from worker goroutines after each range
	// with the number of finished ranges and the total.
	Progress func(done, total int)
}

// Result summarises a merge round.
type Result struct {
	ManifestPath string
	Parts        int
	Bytes        int
	Documents    uint64
	Stats        index.MergeStats
}

// Engine runs merge rounds.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine validates opts and creates an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Threads < 1 {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "merge threads must be positive, got %d", opts.Threads)
	}
	if opts.OutputShards < 1 {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "output shards must be positive, got %d", opts.OutputShards)
	}
	return &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "merge-engine"),
	}, nil
}

type source struct {
	path string
	m    *manifest.Manifest
}

type task struct {
	g   segment.Granularity
	idx int
	rng index.Range
}

type outcome struct {
	part  manifest.Part
	bytes int
	stats index.MergeStats
}

// Run merges the manifests at inputs into outDir and writes outDir's
// manifest, which lists every input and everything the inputs had folded in
// as its sources. outDir must not hold any of the inputs. Ranges are handed to at
// most Threads workers in boundary order, granularity by granularity.
func (e *Engine) Run(ctx context.Context, inputs []string, outDir string) (Result, error) {
	if len(inputs) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.ErrInvalidInput, "no input manifests")
	}
	for _, in := range inputs {
		if filepath.Clean(filepath.Dir(in)) == filepath.Clean(outDir) {
			return Result{}, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "output directory %s holds input %s", outDir, in)
		}
	}
	ctx = logger.WithRound(ctx, filepath.Base(outDir))
	ctx, span := tracing.StartSpan(ctx, "merge-round", tracing.NewTraceID())
	log := logger.FromContext(ctx).With("component", "merge-engine")
	defer func() {
		span.End()
		span.Log(log)
	}()

	combined := manifest.New()
	base := filepath.Dir(filepath.Clean(outDir))
	var sources []source
	err := tracing.Phase(ctx, "load-manifests", func(context.Context) error {
		for _, in := range inputs {
			m, ok, err := manifest.Load(in)
			if err != nil {
				return err
			}
			if !ok {
				log.Warn("input manifest missing, skipping", "manifest", in)
				continue
			}
			combined.Absorb(m)
			combined.AddSource(base, in)
			combined.InheritSources(base, in, m)
			sources = append(sources, source{path: in, m: m})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	boundaries, err := shard.SplitAt(e.opts.OutputShards)
	if err != nil {
		return Result{}, err
	}
	ranges := shard.Ranges(boundaries)
	tasks := make([]task, 0, len(segment.Granularities)*len(ranges))
	for _, g := range segment.Granularities {
		for i, rng := range ranges {
			tasks = append(tasks, task{g: g, idx: i, rng: rng})
		}
	}
	span.SetAttr("inputs", len(sources))
	span.SetAttr("ranges", len(tasks))
	log.Info("merge round starting",
		"inputs", len(sources),
		"ranges", len(ranges),
		"threads", e.opts.Threads,
		"out_dir", outDir,
	)

	outcomes := make([]outcome, len(tasks))
	err = tracing.Phase(ctx, "merge-ranges", func(ctx context.Context) error {
		var finished atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Threads)
		for i, t := range tasks {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out, err := e.mergeRange(gctx, log, sources, t, outDir)
				if err != nil {
					return err
				}
				outcomes[i] = out
				if e.opts.Progress != nil {
					e.opts.Progress(int(finished.Add(1)), len(tasks))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		return Result{}, fmt.Errorf("merging into %s: %w", outDir, err)
	}

	res := Result{
		ManifestPath: filepath.Join(outDir, manifest.FileName),
		Documents:    combined.TotalPages,
	}
	for _, g := range segment.Granularities {
		var parts []manifest.Part
		for i, t := range tasks {
			if t.g != g {
				continue
			}
			parts = append(parts, outcomes[i].part)
			res.Parts++
			res.Bytes += outcomes[i].bytes
			res.Stats.Merged += outcomes[i].stats.Merged
			res.Stats.Added += outcomes[i].stats.Added
			res.Stats.Skipped += outcomes[i].stats.Skipped
		}
		combined.SetParts(g, parts)
	}
	err = tracing.Phase(ctx, "write-manifest", func(context.Context) error {
		return combined.Save(res.ManifestPath)
	})
	if err != nil {
		return Result{}, err
	}
	log.Info("merge round complete",
		"manifest", res.ManifestPath,
		"parts", res.Parts,
		"bytes", res.Bytes,
		"documents", res.Documents,
		"keys_merged", res.Stats.Merged,
		"keys_added", res.Stats.Added,
	)
	return res, nil
}

// mergeRange builds the output partition of one task from every source part
// overlapping its range.
func (e *Engine) mergeRange(ctx context.Context, log *slog.Logger, sources []source, t task, outDir string) (out outcome, err error) {
	done := e.opts.Metrics.MergeStarted(string(t.g))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok || !pkgerrors.IsFatal(rerr) {
				panic(r)
			}
			err = fmt.Errorf("merging %s range %s: %w", t.g, t.rng, rerr)
		}
		done(err)
	}()

	dest := index.NewPartition(t.rng, e.opts.Partition)
	defer dest.Reset()
	loaded := 0
	for _, src := range sources {
		for _, part := range src.m.Parts(t.g) {
			if ctx.Err() != nil {
				return outcome{}, ctx.Err()
			}
			if !part.Range().Overlaps(t.rng) {
				continue
			}
			path := part.Resolve(src.path)
			p, ok, err := segment.Read(path, part.Range(), e.opts.Partition)
			if err != nil {
				return outcome{}, err
			}
			if !ok {
				log.Warn("partition file missing, treating as empty", "path", path)
				continue
			}
			stats, err := dest.Merge(p)
			p.Reset()
			if err != nil {
				return outcome{}, fmt.Errorf("merging %s: %w", path, err)
			}
			out.stats.Merged += stats.Merged
			out.stats.Added += stats.Added
			out.stats.Skipped += stats.Skipped
			loaded++
		}
	}

	name := segment.FileName(t.g, t.idx)
	w := segment.NewWriter(outDir)
	_, n, err := w.Write(name, dest)
	e.opts.Metrics.PartitionWritten("merge", n, err)
	if err != nil {
		return outcome{}, err
	}
	out.part = manifest.NewPart(name, t.rng)
	out.bytes = n
	log.Debug("range merged",
		"granularity", t.g,
		"range", t.rng.String(),
		"sources", loaded,
		"keys", dest.Len(),
		"pages", dest.PageCount(),
		"elapsed", time.Since(start),
	)
	return out, nil
}
