// Package executor answers term and query lookups against the partitions a
// manifest lists. Partitions are loaded lazily on first use and shared by
// concurrent queries.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/ranker"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Options configures a Searcher.
type Options struct {
	ManifestPath string
	Partition    index.Options
	DefaultLimit int
	MaxResults   int
	Metrics      *metrics.Metrics
}

// Searcher serves lookups from one manifest. It is safe for concurrent use.
type Searcher struct {
	opts   Options
	group  singleflight.Group
	logger *slog.Logger

	mu       sync.RWMutex
	manifest *manifest.Manifest
	shards   map[string]*index.Partition
}

// New loads the manifest at opts.ManifestPath. A missing manifest gives an
// empty index until Reload finds one.
func New(opts Options) (*Searcher, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = merger.DefaultLimit
	}
	s := &Searcher{
		opts:   opts,
		logger: slog.Default().With("component", "searcher"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the manifest and drops every loaded partition.
func (s *Searcher) Reload() error {
	m, ok, err := manifest.Load(s.opts.ManifestPath)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("manifest not found, serving an empty index", "manifest", s.opts.ManifestPath)
	} else if err := m.Validate(); err != nil {
		return fmt.Errorf("manifest %s: %w", s.opts.ManifestPath, err)
	}
	s.mu.Lock()
	s.manifest = m
	s.shards = make(map[string]*index.Partition)
	s.mu.Unlock()
	s.logger.Info("manifest loaded",
		"manifest", s.opts.ManifestPath,
		"documents", m.TotalPages,
		"word_parts", len(m.WordParts),
	)
	return nil
}

// Stats returns the corpus statistics ranking uses.
func (s *Searcher) Stats() ranker.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranker.Params{
		TotalDocs:    s.manifest.TotalPages,
		AvgDocLength: s.manifest.AveragePageLength,
	}
}

// PageLength returns the recorded length of a document.
func (s *Searcher) PageLength(id uint64) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest.PageLength(id)
}

// Granularity picks the index a term lives in from its word count.
func Granularity(term string) (segment.Granularity, string, error) {
	words := strings.Fields(term)
	switch len(words) {
	case 1:
		return segment.Word, words[0], nil
	case 2:
		return segment.Pair, strings.Join(words, " "), nil
	case 3:
		return segment.Trine, strings.Join(words, " "), nil
	default:
		return "", "", pkgerrors.Newf(pkgerrors.ErrInvalidInput, "term %q has %d words, want 1 to 3", term, len(words))
	}
}

// Postings returns the posting list of term with global document ids,
// sorted by id. A term no partition holds yields an empty list.
func (s *Searcher) Postings(ctx context.Context, term string) ([]index.Entry, error) {
	g, key, err := Granularity(term)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	part, ok := s.manifest.Lookup(g, key)
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	p, err := s.shard(ctx, part)
	if err != nil {
		return nil, err
	}
	posting, found := p.Find(key)
	if !found {
		return nil, nil
	}
	local, err := posting.Entries()
	if err != nil {
		return nil, fmt.Errorf("decoding posting %q: %w", key, err)
	}
	out := make([]index.Entry, 0, len(local))
	for _, e := range local {
		id, ok := p.PageID(e.ID)
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "ordinal %d of %q has no page id", e.ID, key)
		}
		out = append(out, index.Entry{ID: id, Count: e.Count})
	}
	return coalesce(out), nil
}

// Search ranks documents for a whitespace separated query. Every word, pair
// and trine of adjacent query words contributes its BM25 score.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	limit = s.clampLimit(limit)
	tokens := strings.Fields(strings.ToLower(query))
	result := &SearchResult{
		Query:     query,
		Results:   []ranker.ScoredDoc{},
		TermStats: make(map[string]int),
	}
	if len(tokens) == 0 {
		s.opts.Metrics.SearchDone("empty", time.Since(start))
		return result, nil
	}

	params := s.Stats()
	var lists [][]ranker.ScoredDoc
	hits := make(map[uint64]struct{})
	for _, g := range segment.Granularities {
		perTerm := make(map[string][]index.Entry)
		for _, term := range indexer.Terms(tokens, g) {
			if _, seen := perTerm[term]; seen {
				continue
			}
			postings, err := s.Postings(ctx, term)
			if err != nil {
				s.opts.Metrics.SearchDone("error", time.Since(start))
				return nil, fmt.Errorf("searching term %q: %w", term, err)
			}
			perTerm[term] = postings
			if len(postings) > 0 {
				result.TermStats[term] = len(postings)
			}
		}
		ranked := ranker.Rank(perTerm, params, s.PageLength, 0)
		for _, d := range ranked {
			hits[d.DocID] = struct{}{}
		}
		lists = append(lists, ranked)
	}
	result.Results = merger.Merge(lists, limit)
	result.TotalHits = len(hits)

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "empty"
	}
	s.opts.Metrics.SearchDone(resultType, time.Since(start))
	s.logger.Debug("query executed",
		"query", query,
		"terms", len(result.TermStats),
		"candidates", result.TotalHits,
		"results", len(result.Results),
		"elapsed", time.Since(start),
	)
	return result, nil
}

func (s *Searcher) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if s.opts.MaxResults > 0 && limit > s.opts.MaxResults {
		limit = s.opts.MaxResults
	}
	return limit
}

// shard returns the loaded partition for part, loading it at most once even
// under concurrent requests.
func (s *Searcher) shard(ctx context.Context, part manifest.Part) (*index.Partition, error) {
	path := part.Resolve(s.opts.ManifestPath)
	s.mu.RLock()
	p, ok := s.shards[path]
	s.mu.RUnlock()
	if ok {
		s.opts.Metrics.ShardLoaded("cached")
		return p, nil
	}

	v, err, _ := s.group.Do(path, func() (interface{}, error) {
		s.mu.RLock()
		p, ok := s.shards[path]
		s.mu.RUnlock()
		if ok {
			return p, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, found, err := segment.Read(path, part.Range(), s.opts.Partition)
		if err != nil {
			s.opts.Metrics.ShardLoaded("error")
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrShardUnavailable, err)
		}
		if !found {
			s.opts.Metrics.ShardLoaded("missing")
			s.logger.Warn("partition file missing, treating as empty", "path", path)
		} else {
			s.opts.Metrics.ShardLoaded("loaded")
		}
		s.mu.Lock()
		s.shards[path] = p
		s.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*index.Partition), nil
}

// coalesce sorts entries by id and folds repeated ids with a saturating
// count sum.
func coalesce(entries []index.Entry) []index.Entry {
	sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	if !sorted {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ID < entries[j].ID
		})
	}
	out := entries[:0]
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].ID == e.ID {
			if sum := int(out[n-1].Count) + int(e.Count); sum > index.MaxCount {
				out[n-1].Count = index.MaxCount
			} else {
				out[n-1].Count = uint8(sum)
			}
			continue
		}
		out = append(out, e)
	}
	return out
}
