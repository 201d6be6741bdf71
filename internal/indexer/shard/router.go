package shard

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// Router maps terms to the index of the range that owns them.
type Router struct {
	boundaries []string
	ranges     []index.Range
}

// NewRouter builds a router over SplitAt(numShards).
func NewRouter(numShards int) (*Router, error) {
	boundaries, err := SplitAt(numShards)
	if err != nil {
		return nil, fmt.Errorf("splitting %d shards: %w", numShards, err)
	}
	r, err := NewRouterFromBoundaries(boundaries)
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "shard-router").Debug("shard router ready",
		"requested_shards", numShards,
		"num_shards", len(boundaries),
	)
	return r, nil
}

// NewRouterFromBoundaries builds a router over existing start boundaries,
// for example the ones recorded in a manifest. They must start with "" and
// be strictly increasing.
func NewRouterFromBoundaries(boundaries []string) (*Router, error) {
	if len(boundaries) == 0 || boundaries[0] != "" {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidInput, "boundaries must start with the empty string")
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput,
				"boundary %q does not follow %q", boundaries[i], boundaries[i-1])
		}
	}
	b := append([]string(nil), boundaries...)
	return &Router{
		boundaries: b,
		ranges:     Ranges(b),
	}, nil
}

// Route returns the index of the range containing term.
func (r *Router) Route(term string) int {
	return sort.Search(len(r.boundaries), func(i int) bool {
		return r.boundaries[i] > term
	}) - 1
}

// Range returns the key range of shard i.
func (r *Router) Range(i int) index.Range {
	return r.ranges[i]
}

// Ranges returns every shard range in boundary order. It must not be
// modified.
func (r *Router) Ranges() []index.Range {
	return r.ranges
}

// Boundaries returns the start boundaries. They must not be modified.
func (r *Router) Boundaries() []string {
	return r.boundaries
}

// NumShards returns the number of ranges.
func (r *Router) NumShards() int {
	return len(r.boundaries)
}
