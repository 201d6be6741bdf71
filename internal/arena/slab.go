package arena

import (
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// DefaultSlabCapacity is the number of nodes per Slab chunk.
const DefaultSlabCapacity = 4096

// Nil is the index value that never refers to a node.
const Nil = ^uint32(0)

// Slab is a fixed-size node pool. Nodes are addressed by stable uint32
// indices instead of pointers; an index stays valid until Reset.
type Slab[T any] struct {
	capacity int
	limit    int
	chunks   [][]T
	count    int
}

// NewSlab creates a Slab holding chunkCapacity nodes per chunk. A limit of
// zero means no upper bound on the node count.
func NewSlab[T any](chunkCapacity int, limit int) *Slab[T] {
	if chunkCapacity <= 0 {
		chunkCapacity = DefaultSlabCapacity
	}
	return &Slab[T]{
		capacity: chunkCapacity,
		limit:    limit,
	}
}

// Allocate returns the index of a fresh zero-valued node.
// Exceeding the limit panics with ErrArenaExhausted.
func (s *Slab[T]) Allocate() uint32 {
	if s.limit > 0 && s.count >= s.limit {
		panic(pkgerrors.Newf(pkgerrors.ErrArenaExhausted, "slab limit of %d nodes reached", s.limit))
	}
	if uint64(s.count) >= uint64(Nil) {
		panic(pkgerrors.New(pkgerrors.ErrArenaExhausted, "slab index space exhausted"))
	}
	if s.count == len(s.chunks)*s.capacity {
		s.chunks = append(s.chunks, make([]T, s.capacity))
	}
	idx := uint32(s.count)
	s.count++
	return idx
}

// At returns a pointer to the node at idx. The pointer is stable because
// chunks are never reallocated.
func (s *Slab[T]) At(idx uint32) *T {
	i := int(idx)
	return &s.chunks[i/s.capacity][i%s.capacity]
}

// Len returns the number of nodes allocated.
func (s *Slab[T]) Len() int {
	return s.count
}

// Reset releases every chunk.
func (s *Slab[T]) Reset() {
	s.chunks = nil
	s.count = 0
}
