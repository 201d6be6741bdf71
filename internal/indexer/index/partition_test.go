package index

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

func smallOptions() Options {
	return Options{BucketCount: 8, ArenaChunkSize: 256, NodeChunkCapacity: 16}
}

func insertDoc(t *testing.T, p *Partition, id uint64, terms ...string) {
	t.Helper()
	ord := p.AddPage(id)
	for _, term := range terms {
		require.NoError(t, p.Insert(term, ord))
	}
}

func findEntries(t *testing.T, p *Partition, term string) []Entry {
	t.Helper()
	posting, ok := p.Find(term)
	require.True(t, ok, "term %q not found", term)
	return entriesOf(t, posting)
}

func TestInsertAndFind(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	insertDoc(t, p, 100, "quick", "brown", "fox", "quick")
	insertDoc(t, p, 200, "lazy", "fox")

	assert.Equal(t, []Entry{{ID: 0, Count: 2}}, findEntries(t, p, "quick"))
	assert.Equal(t, []Entry{{ID: 0, Count: 1}, {ID: 1, Count: 1}}, findEntries(t, p, "fox"))
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, []string{"brown", "fox", "lazy", "quick"}, p.Terms())

	id, ok := p.PageID(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(200), id)
	_, ok = p.PageID(2)
	assert.False(t, ok)

	_, ok = p.Find("missing")
	assert.False(t, ok)
	_, ok = p.Find("")
	assert.False(t, ok)
}

func TestInsertRejectsEmptyAndOutOfRange(t *testing.T) {
	p := NewPartition(Bounded("g", "n"), smallOptions())
	ord := p.AddPage(1)

	assert.ErrorIs(t, p.Insert("", ord), pkgerrors.ErrEmptyTerm)
	assert.ErrorIs(t, p.Insert("apple", ord), pkgerrors.ErrKeyOutOfRange)
	assert.ErrorIs(t, p.Insert("n", ord), pkgerrors.ErrKeyOutOfRange)
	assert.NoError(t, p.Insert("mango", ord))
	assert.Equal(t, 1, p.Len())
}

func TestInsertTruncatesLongTerms(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	long := strings.Repeat("a", 400)
	insertDoc(t, p, 1, long)
	insertDoc(t, p, 2, long[:MaxKeyLength])

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []Entry{{ID: 0, Count: 1}, {ID: 1, Count: 1}}, findEntries(t, p, long))
}

func TestCountSaturates(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	ord := p.AddPage(9)
	for i := 0; i < 300; i++ {
		require.NoError(t, p.Insert("the", ord))
	}
	assert.Equal(t, []Entry{{ID: 0, Count: MaxCount}}, findEntries(t, p, "the"))
}

func TestChainsAreOrderedByLengthThenBytes(t *testing.T) {
	// a single bucket forces every key into one chain
	p := NewPartition(FullRange(), Options{BucketCount: 1})
	insertDoc(t, p, 1, "ccc", "b", "aa", "a", "zz", "abc")

	var got []string
	p.Each(func(k Key, _ *Posting) bool {
		got = append(got, k.String())
		return true
	})
	assert.Equal(t, []string{"a", "b", "aa", "zz", "abc", "ccc"}, got)

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		assert.True(t, len(prev) < len(cur) || (len(prev) == len(cur) && prev < cur), "%q before %q", prev, cur)
	}
}

func TestEachStopsEarly(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	insertDoc(t, p, 1, "a", "b", "c", "d")
	seen := 0
	p.Each(func(Key, *Posting) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestMergeDisjointPartitions(t *testing.T) {
	dst := NewPartition(FullRange(), smallOptions())
	insertDoc(t, dst, 10, "alpha", "beta")
	insertDoc(t, dst, 11, "beta")

	src := NewPartition(FullRange(), smallOptions())
	insertDoc(t, src, 20, "beta", "gamma")

	stats, err := dst.Merge(src)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Offset)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 1, stats.Added)
	assert.Zero(t, stats.Skipped)

	assert.Equal(t, []uint64{10, 11, 20}, dst.PageIDs())
	assert.Equal(t, []Entry{{ID: 0, Count: 1}, {ID: 1, Count: 1}, {ID: 2, Count: 1}}, findEntries(t, dst, "beta"))
	assert.Equal(t, []Entry{{ID: 2, Count: 1}}, findEntries(t, dst, "gamma"))
	assert.Equal(t, []Entry{{ID: 0, Count: 1}}, findEntries(t, dst, "alpha"))
}

func TestMergeSkipsKeysOutsideRange(t *testing.T) {
	dst := NewPartition(Bounded("b", "m"), smallOptions())
	src := NewPartition(FullRange(), smallOptions())
	insertDoc(t, src, 1, "apple", "banana", "cherry", "melon")

	stats, err := dst.Merge(src)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, []string{"banana", "cherry"}, dst.Terms())
	assert.Equal(t, 1, dst.PageCount())
}

func TestMergeMatchesDirectInsertion(t *testing.T) {
	docs := [][]string{
		{"red", "green", "blue"},
		{"green", "green"},
		{"blue", "cyan"},
		{"red", "cyan", "magenta"},
	}
	direct := NewPartition(FullRange(), smallOptions())
	for i, doc := range docs {
		insertDoc(t, direct, uint64(i), doc...)
	}

	left := NewPartition(FullRange(), smallOptions())
	right := NewPartition(FullRange(), smallOptions())
	for i, doc := range docs {
		if i < 2 {
			insertDoc(t, left, uint64(i), doc...)
		} else {
			insertDoc(t, right, uint64(i), doc...)
		}
	}
	right.Freeze()
	_, err := left.Merge(right)
	require.NoError(t, err)

	assert.Equal(t, direct.Terms(), left.Terms())
	assert.Equal(t, direct.PageIDs(), left.PageIDs())
	for _, term := range direct.Terms() {
		assert.Equal(t, findEntries(t, direct, term), findEntries(t, left, term), term)
	}
}

func TestFreezeKeepsContent(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	insertDoc(t, p, 1, "x", "y")
	insertDoc(t, p, 2, "y")
	p.Freeze()

	posting, ok := p.Find("y")
	require.True(t, ok)
	assert.True(t, posting.Frozen())
	assert.Equal(t, []Entry{{ID: 0, Count: 1}, {ID: 1, Count: 1}}, findEntries(t, p, "y"))

	ord := p.AddPage(3)
	require.NoError(t, p.Insert("y", ord))
	assert.False(t, posting.Frozen())
	assert.Equal(t, 3, posting.Len())
}

func TestReset(t *testing.T) {
	p := NewPartition(FullRange(), smallOptions())
	insertDoc(t, p, 1, "one", "two")
	p.Reset()

	assert.Zero(t, p.Len())
	assert.Zero(t, p.PageCount())
	assert.Zero(t, p.ArenaBytes())
	_, ok := p.Find("one")
	assert.False(t, ok)

	insertDoc(t, p, 5, "one")
	assert.Equal(t, []Entry{{ID: 0, Count: 1}}, findEntries(t, p, "one"))
}

func TestArenaLimitIsFatal(t *testing.T) {
	p := NewPartition(FullRange(), Options{BucketCount: 8, ArenaChunkSize: 32, ArenaLimit: 64})
	ord := p.AddPage(1)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, pkgerrors.ErrArenaExhausted))
	}()
	for i := 0; i < 100; i++ {
		_ = p.Insert(fmt.Sprintf("term-%03d", i), ord)
	}
	t.Fatal("arena limit was never hit")
}

func BenchmarkPartitionInsert(b *testing.B) {
	terms := make([]string, 1024)
	for i := range terms {
		terms[i] = fmt.Sprintf("term%d", i)
	}
	p := NewPartition(FullRange(), Options{})
	ord := p.AddPage(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.Insert(terms[i%len(terms)], ord); err != nil {
			b.Fatal(err)
		}
	}
}
