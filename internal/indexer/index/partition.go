package index

import (
	"math/bits"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/arena"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// DefaultBucketCount is the number of hash buckets of a partition.
const DefaultBucketCount = 1 << 16

// Options tunes the memory layout of a Partition.
type Options struct {
	BucketCount       int
	ArenaChunkSize    int
	NodeChunkCapacity int
	ArenaLimit        int64
}

func (o Options) withDefaults() Options {
	if o.BucketCount <= 0 {
		o.BucketCount = DefaultBucketCount
	}
	if o.BucketCount&(o.BucketCount-1) != 0 {
		o.BucketCount = 1 << bits.Len(uint(o.BucketCount))
	}
	if o.ArenaChunkSize <= 0 {
		o.ArenaChunkSize = arena.DefaultChunkSize
	}
	if o.NodeChunkCapacity <= 0 {
		o.NodeChunkCapacity = arena.DefaultSlabCapacity
	}
	return o
}

type node struct {
	key     Key
	posting Posting
	next    uint32
}

// Partition is a hashed dictionary from term to posting covering one key
// Range. Each bucket is a singly linked chain ordered by key length and then
// by key bytes, which lets lookups stop as soon as a longer key shows up.
//
// Key bytes and frozen posting blobs live in the partition's byte arena and
// chain nodes in its node slab; both are released together by Reset. A
// Partition is not safe for concurrent mutation.
type Partition struct {
	rng     Range
	opts    Options
	mask    uint64
	buckets []uint32
	nodes   *arena.Slab[node]
	pool    *arena.Pool
	pageIDs []uint64
}

// MergeStats summarises one Merge call.
type MergeStats struct {
	Merged  int
	Added   int
	Skipped int
	Offset  uint64
}

// NewPartition creates an empty partition for rng.
func NewPartition(rng Range, opts Options) *Partition {
	opts = opts.withDefaults()
	p := &Partition{
		rng:  rng,
		opts: opts,
		mask: uint64(opts.BucketCount - 1),
	}
	p.init()
	return p
}

func (p *Partition) init() {
	p.buckets = make([]uint32, p.opts.BucketCount)
	for i := range p.buckets {
		p.buckets[i] = arena.Nil
	}
	p.nodes = arena.NewSlab[node](p.opts.NodeChunkCapacity, 0)
	p.pool = arena.NewPool(p.opts.ArenaChunkSize, p.opts.ArenaLimit)
	p.pageIDs = nil
}

// Range returns the key range the partition covers.
func (p *Partition) Range() Range {
	return p.rng
}

// AddPage registers a global document id and returns its local ordinal.
func (p *Partition) AddPage(id uint64) uint32 {
	p.pageIDs = append(p.pageIDs, id)
	return uint32(len(p.pageIDs) - 1)
}

// PageID maps a local ordinal to its global document id.
func (p *Partition) PageID(ordinal uint64) (uint64, bool) {
	if ordinal >= uint64(len(p.pageIDs)) {
		return 0, false
	}
	return p.pageIDs[ordinal], true
}

// PageIDs returns the local-to-global document table. It must not be
// modified.
func (p *Partition) PageIDs() []uint64 {
	return p.pageIDs
}

// PageCount returns the number of documents known to the partition.
func (p *Partition) PageCount() int {
	return len(p.pageIDs)
}

// Len returns the number of distinct keys.
func (p *Partition) Len() int {
	return p.nodes.Len()
}

// ArenaBytes returns the bytes reserved by the partition's byte arena.
func (p *Partition) ArenaBytes() int64 {
	return p.pool.Reserved()
}

// Insert records one occurrence of term in the document with the given
// local ordinal. Terms longer than MaxKeyLength are truncated.
func (p *Partition) Insert(term string, ordinal uint32) error {
	if term == "" {
		return pkgerrors.ErrEmptyTerm
	}
	term = Truncate(term)
	if !p.rng.Contains(term) {
		return pkgerrors.Newf(pkgerrors.ErrKeyOutOfRange, "term %q not in %s", term, p.rng)
	}
	b := p.bucket(term)
	prev, cur, found := p.locate(b, term)
	if !found {
		cur = p.link(b, prev, cur, NewKey(p.pool, term))
	}
	return p.nodes.At(cur).posting.Append(uint64(ordinal))
}

// Find returns the posting stored for term. The returned posting belongs to
// the partition and is only valid until the partition is reset.
func (p *Partition) Find(term string) (*Posting, bool) {
	if term == "" {
		return nil, false
	}
	term = Truncate(term)
	_, cur, found := p.locate(p.bucket(term), term)
	if !found {
		return nil, false
	}
	return &p.nodes.At(cur).posting, true
}

// Merge folds other into p. Keys of other outside p's range are skipped.
// Document ordinals of other are shifted by p's page count before the call,
// and other's page table is appended to p's afterwards, so the local ids of
// both sides stay unique.
func (p *Partition) Merge(other *Partition) (MergeStats, error) {
	stats := MergeStats{Offset: uint64(len(p.pageIDs))}
	var err error
	other.Each(func(k Key, src *Posting) bool {
		if !p.rng.ContainsKey(k) {
			stats.Skipped++
			return true
		}
		term := k.String()
		b := p.bucket(term)
		prev, cur, found := p.locate(b, term)
		if found {
			stats.Merged++
		} else {
			cur = p.link(b, prev, cur, NewKey(p.pool, term))
			stats.Added++
		}
		err = p.nodes.At(cur).posting.Merge(src, stats.Offset)
		return err == nil
	})
	if err != nil {
		return stats, err
	}
	p.pageIDs = append(p.pageIDs, other.pageIDs...)
	return stats, nil
}

// Each calls fn for every key in chain-traversal order: buckets in index
// order, each chain front to back. Iteration stops when fn returns false.
func (p *Partition) Each(fn func(k Key, posting *Posting) bool) {
	for _, head := range p.buckets {
		for cur := head; cur != arena.Nil; {
			n := p.nodes.At(cur)
			if !fn(n.key, &n.posting) {
				return
			}
			cur = n.next
		}
	}
}

// Terms returns every key in lexicographic order.
func (p *Partition) Terms() []string {
	terms := make([]string, 0, p.Len())
	p.Each(func(k Key, _ *Posting) bool {
		terms = append(terms, k.String())
		return true
	})
	sort.Strings(terms)
	return terms
}

// Freeze compresses every thawed posting into the arena.
func (p *Partition) Freeze() {
	p.Each(func(_ Key, posting *Posting) bool {
		posting.Freeze(p.pool)
		return true
	})
}

// Reset drops every key, posting and page id at once.
func (p *Partition) Reset() {
	p.nodes.Reset()
	p.pool.Reset()
	p.init()
}

func (p *Partition) bucket(term string) uint64 {
	return xxhash.Sum64String(term) & p.mask
}

// locate walks bucket b. If term is present it returns its node; otherwise
// cur is the first node ordered after term (or arena.Nil) and prev the node
// before the insertion point.
func (p *Partition) locate(b uint64, term string) (prev, cur uint32, found bool) {
	prev = arena.Nil
	cur = p.buckets[b]
	for cur != arena.Nil {
		n := p.nodes.At(cur)
		switch c := chainOrder(n.key, term); {
		case c == 0:
			return prev, cur, true
		case c > 0:
			return prev, cur, false
		}
		prev, cur = cur, n.next
	}
	return prev, arena.Nil, false
}

func (p *Partition) link(b uint64, prev, next uint32, key Key) uint32 {
	idx := p.nodes.Allocate()
	n := p.nodes.At(idx)
	n.key = key
	n.next = next
	if prev == arena.Nil {
		p.buckets[b] = idx
	} else {
		p.nodes.At(prev).next = idx
	}
	return idx
}
