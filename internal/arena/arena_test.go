package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

func TestPoolAllocationsDoNotOverlap(t *testing.T) {
	p := NewPool(16, 0)

	a := p.Allocate(10)
	b := p.Allocate(10)
	for i := range a {
		a[i] = 'a'
	}
	for i := range b {
		b[i] = 'b'
	}

	assert.Equal(t, "aaaaaaaaaa", string(a))
	assert.Equal(t, "bbbbbbbbbb", string(b))
	assert.Equal(t, 2, p.Chunks(), "second allocation should not fit in the first chunk")
	assert.Equal(t, int64(20), p.Used())
}

func TestPoolCapacityIsCapped(t *testing.T) {
	p := NewPool(64, 0)
	a := p.Allocate(4)
	b := p.Allocate(4)
	copy(b, "keep")

	a = append(a, 'x')
	assert.Equal(t, "keep", string(b), "append on an allocation must not clobber its neighbour")
	assert.Len(t, a, 5)
}

func TestPoolOversizedRequestKeepsSharedChunk(t *testing.T) {
	p := NewPool(32, 0)
	p.Allocate(8)
	big := p.Allocate(100)
	small := p.Allocate(8)

	assert.Len(t, big, 100)
	assert.Len(t, small, 8)
	assert.Equal(t, 2, p.Chunks())
	assert.Equal(t, int64(132), p.Reserved())
}

func TestPoolCopy(t *testing.T) {
	p := NewPool(0, 0)
	src := []byte("posting")
	dst := p.Copy(src)
	src[0] = 'X'
	assert.Equal(t, "posting", string(dst))
	assert.Empty(t, p.Allocate(0))
}

func TestPoolLimitIsFatal(t *testing.T) {
	p := NewPool(16, 32)
	p.Allocate(16)
	p.Allocate(16)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, pkgerrors.ErrArenaExhausted))
		assert.True(t, pkgerrors.IsFatal(err))
	}()
	p.Allocate(1)
}

func TestPoolReset(t *testing.T) {
	p := NewPool(16, 0)
	p.Allocate(12)
	p.Allocate(12)
	p.Reset()
	assert.Equal(t, 0, p.Chunks())
	assert.Equal(t, int64(0), p.Used())
	assert.Equal(t, int64(0), p.Reserved())
}

func TestSlabStableIndices(t *testing.T) {
	type node struct {
		value int
		next  uint32
	}
	s := NewSlab[node](3, 0)

	ids := make([]uint32, 0, 10)
	for i := 0; i < 10; i++ {
		id := s.Allocate()
		s.At(id).value = i * 10
		ids = append(ids, id)
	}
	first := s.At(ids[0])

	for i, id := range ids {
		assert.Equal(t, uint32(i), id)
		assert.Equal(t, i*10, s.At(id).value)
	}
	assert.Same(t, first, s.At(ids[0]), "growing the slab must not move nodes")
	assert.Equal(t, 10, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestSlabLimit(t *testing.T) {
	s := NewSlab[int](2, 2)
	s.Allocate()
	s.Allocate()
	assert.Panics(t, func() { s.Allocate() })
}

func BenchmarkPoolAllocate(b *testing.B) {
	p := NewPool(DefaultChunkSize, 0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Allocate(24)
	}
}
