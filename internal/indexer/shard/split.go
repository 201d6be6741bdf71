// Package shard splits the term-key space into lexicographic ranges and
// routes terms to the range that owns them.
package shard

import (
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// Alphabet is the ordered symbol set boundaries are drawn from. Terms are
// expected to start with one of these bytes; anything else still routes
// correctly, only less evenly.
const Alphabet = "-.0123456789abcdefghijklmnopqrstuvwxyz"

// SplitAt returns sorted start boundaries for roughly n shards. The first
// boundary is always the empty string, so together the boundaries cover
// every key.
//
// For n up to len(Alphabet) the result has exactly n entries. Larger counts
// refine with the full alphabet one level at a time; the result then has
// len(Alphabet)^k × r entries, where r is what is left of n after k integer
// divisions. The split assumes leading bytes are spread evenly over the
// alphabet and is not exact.
func SplitAt(n int) ([]string, error) {
	if n < 1 {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "shard count must be positive, got %d", n)
	}

	var levels [][]string
	for parts := n; parts > 1; {
		if parts > len(Alphabet) {
			levels = append(levels, spread(len(Alphabet)))
			parts /= len(Alphabet)
			continue
		}
		levels = append(levels, spread(parts))
		parts = 1
	}
	// Fold from the innermost level outwards. Each level's first symbol is
	// replaced by "" so the enclosing prefix itself stays a boundary.
	prefixes := []string{""}
	for l := len(levels) - 1; l >= 0; l-- {
		next := make([]string, 0, len(levels[l])*len(prefixes))
		for _, s := range levels[l] {
			for _, p := range prefixes {
				next = append(next, s+p)
			}
		}
		next[0] = ""
		prefixes = next
	}
	return prefixes, nil
}

// spread returns n alphabet symbols spaced evenly, starting with the first.
// Symbol i is Alphabet[i*len(Alphabet)/n], so gaps differ by at most one.
func spread(n int) []string {
	out := make([]string, n)
	for i := range out {
		at := i * len(Alphabet) / n
		out[i] = Alphabet[at : at+1]
	}
	return out
}

// Ranges turns sorted start boundaries into consecutive half-open ranges.
// The last range is unbounded above.
func Ranges(boundaries []string) []index.Range {
	ranges := make([]index.Range, len(boundaries))
	for i, start := range boundaries {
		if i+1 < len(boundaries) {
			ranges[i] = index.Bounded(start, boundaries[i+1])
		} else {
			ranges[i] = index.From(start)
		}
	}
	return ranges
}
