// Package arena provides bump allocators that hand out memory from large
// preallocated chunks and release everything at once. Individual allocations
// are never freed or reused.
package arena

import (
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// DefaultChunkSize is the chunk granularity of a variable-size Pool.
const DefaultChunkSize = 1 << 20

// Pool is a variable-size byte arena. Slices returned by Allocate stay valid
// until Reset; growing the pool never moves earlier allocations.
type Pool struct {
	chunkSize int
	limit     int64
	chunks    [][]byte
	current   []byte
	used      int64
	reserved  int64
}

// NewPool creates a Pool with the given chunk size. A limit of zero means the
// pool may grow without bound.
func NewPool(chunkSize int, limit int64) *Pool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Pool{
		chunkSize: chunkSize,
		limit:     limit,
	}
}

// Allocate returns a zeroed slice of length n. The slice's capacity is capped
// at n so appends can never spill into a neighbouring allocation.
//
// If the pool has a limit and the request would exceed it, Allocate panics
// with ErrArenaExhausted. There is no recovery path.
func (p *Pool) Allocate(n int) []byte {
	if n < 0 {
		panic(pkgerrors.Newf(pkgerrors.ErrInvalidInput, "negative allocation size %d", n))
	}
	if n == 0 {
		return []byte{}
	}
	p.used += int64(n)
	if n > p.chunkSize {
		// Oversized requests get a dedicated chunk so the shared one keeps
		// its remaining room.
		return p.newChunk(n)[:n:n]
	}
	if len(p.current) < n {
		p.current = p.newChunk(p.chunkSize)
	}
	b := p.current[:n:n]
	p.current = p.current[n:]
	return b
}

// Copy allocates len(src) bytes and copies src into them.
func (p *Pool) Copy(src []byte) []byte {
	b := p.Allocate(len(src))
	copy(b, src)
	return b
}

func (p *Pool) newChunk(size int) []byte {
	if p.limit > 0 && p.reserved+int64(size) > p.limit {
		panic(pkgerrors.Newf(pkgerrors.ErrArenaExhausted,
			"pool limit %d bytes reached (reserved %d, requested %d)", p.limit, p.reserved, size))
	}
	chunk := make([]byte, size)
	p.chunks = append(p.chunks, chunk)
	p.reserved += int64(size)
	return chunk
}

// Used returns the number of bytes handed out.
func (p *Pool) Used() int64 {
	return p.used
}

// Reserved returns the number of bytes held in chunks.
func (p *Pool) Reserved() int64 {
	return p.reserved
}

// Chunks returns the number of chunks allocated so far.
func (p *Pool) Chunks() int {
	return len(p.chunks)
}

// Reset drops every chunk at once. Slices previously returned by Allocate
// must not be used afterwards.
func (p *Pool) Reset() {
	p.chunks = nil
	p.current = nil
	p.used = 0
	p.reserved = 0
}
