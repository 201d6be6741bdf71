package index

import (
	"encoding/binary"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/arena"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// MaxCount is the saturation point of a per-document occurrence count.
const MaxCount = 255

// postingHeaderSize covers [id_bytes_length:u32][count:u32].
const postingHeaderSize = 8

// Entry is one (document, occurrence count) pair. Inside a partition the ID
// is a local ordinal into the partition's page id table.
type Entry struct {
	ID    uint64
	Count uint8
}

// Posting is the list of entries for one term. It is either frozen (the
// compressed blob loaded from storage) or thawed (a mutable entry slice). A
// frozen posting is decompressed on its first mutation.
type Posting struct {
	blob     []byte
	entries  []Entry
	unsorted bool
}

// NewFrozenPosting wraps an encoded blob without decoding it. The blob is
// not copied.
func NewFrozenPosting(blob []byte) Posting {
	return Posting{blob: blob}
}

// Frozen reports whether the posting still holds only its compressed form.
func (p *Posting) Frozen() bool {
	return p.blob != nil
}

// Append records one more occurrence of the term in document id. Ids are
// expected in non-decreasing order; an earlier id is accepted but forces a
// sort before the list is next read or saved.
func (p *Posting) Append(id uint64) error {
	if err := p.thaw(); err != nil {
		return err
	}
	n := len(p.entries)
	if n > 0 {
		last := &p.entries[n-1]
		if last.ID == id {
			if last.Count < MaxCount {
				last.Count++
			}
			return nil
		}
		if id < last.ID {
			p.unsorted = true
		}
	}
	p.entries = append(p.entries, Entry{ID: id, Count: 1})
	return nil
}

// Merge appends every entry of other with its id shifted by offset.
func (p *Posting) Merge(other *Posting, offset uint64) error {
	if err := p.thaw(); err != nil {
		return err
	}
	src, err := other.Entries()
	if err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	if n := len(p.entries); n > 0 && src[0].ID+offset <= p.entries[n-1].ID {
		p.unsorted = true
	}
	p.entries = slices.Grow(p.entries, len(src))
	for _, e := range src {
		p.entries = append(p.entries, Entry{ID: e.ID + offset, Count: e.Count})
	}
	return nil
}

// Entries returns the entries sorted by id. For a frozen posting the result
// is a freshly decoded slice and the posting stays frozen; for a thawed one
// it is the posting's own slice and must not be modified.
func (p *Posting) Entries() ([]Entry, error) {
	if p.Frozen() {
		entries, _, err := Decompress(p.blob)
		return entries, err
	}
	p.normalize()
	return p.entries, nil
}

// Len returns the number of distinct documents in the posting.
func (p *Posting) Len() int {
	if p.Frozen() {
		if len(p.blob) < postingHeaderSize {
			return 0
		}
		return int(binary.LittleEndian.Uint32(p.blob[4:8]))
	}
	p.normalize()
	return len(p.entries)
}

// Decompress thaws the posting in place.
func (p *Posting) Decompress() error {
	return p.thaw()
}

// Freeze compresses the posting into pool and drops the entry slice.
func (p *Posting) Freeze(pool *arena.Pool) {
	if p.Frozen() {
		return
	}
	p.normalize()
	blob := pool.Allocate(encodedSize(p.entries))
	encodeInto(blob, p.entries)
	p.blob = blob
	p.entries = nil
}

// EncodedSize returns the size of the on-disk form.
func (p *Posting) EncodedSize() int {
	if p.Frozen() {
		return len(p.blob)
	}
	p.normalize()
	return encodedSize(p.entries)
}

// encodeTo writes the on-disk form into buf, which must hold EncodedSize
// bytes, and returns the number of bytes written.
func (p *Posting) encodeTo(buf []byte) int {
	if p.Frozen() {
		return copy(buf, p.blob)
	}
	p.normalize()
	return encodeInto(buf, p.entries)
}

func (p *Posting) thaw() error {
	if !p.Frozen() {
		return nil
	}
	entries, _, err := Decompress(p.blob)
	if err != nil {
		return err
	}
	p.entries = entries
	p.blob = nil
	return nil
}

// normalize restores ascending id order after out-of-order appends or
// merges, coalescing duplicate ids with a saturating count sum.
func (p *Posting) normalize() {
	if !p.unsorted {
		return
	}
	slices.SortStableFunc(p.entries, func(a, b Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	out := p.entries[:0]
	for _, e := range p.entries {
		if n := len(out); n > 0 && out[n-1].ID == e.ID {
			out[n-1].Count = saturatingAdd(out[n-1].Count, e.Count)
			continue
		}
		out = append(out, e)
	}
	p.entries = out
	p.unsorted = false
}

func saturatingAdd(a, b uint8) uint8 {
	if int(a)+int(b) > MaxCount {
		return MaxCount
	}
	return a + b
}

// Compress encodes sorted entries as
// [id_bytes_length:u32][count:u32][varint id deltas][one count byte per id].
func Compress(entries []Entry) []byte {
	buf := make([]byte, encodedSize(entries))
	encodeInto(buf, entries)
	return buf
}

// Decompress reverses Compress. It also returns the number of bytes the
// posting occupies so callers can walk concatenated blobs.
func Decompress(blob []byte) ([]Entry, int, error) {
	idBytes, count, size, err := postingBounds(blob)
	if err != nil {
		return nil, 0, err
	}
	ids := blob[postingHeaderSize : postingHeaderSize+idBytes]
	counts := blob[postingHeaderSize+idBytes : size]
	entries := make([]Entry, count)
	var prev uint64
	off := 0
	for i := 0; i < count; i++ {
		delta, n := Uvarint(ids[off:])
		if n == 0 {
			return nil, 0, pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
				"posting id %d of %d truncated", i, count)
		}
		off += n
		prev += delta
		entries[i] = Entry{ID: prev, Count: counts[i]}
	}
	if off != idBytes {
		return nil, 0, pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
			"posting id section is %d bytes, decoded %d", idBytes, off)
	}
	return entries, size, nil
}

// postingBounds validates the header of an encoded posting and returns its
// id section length, entry count and total size.
func postingBounds(blob []byte) (idBytes, count, size int, err error) {
	if len(blob) < postingHeaderSize {
		return 0, 0, 0, pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
			"posting header needs %d bytes, have %d", postingHeaderSize, len(blob))
	}
	idBytes = int(binary.LittleEndian.Uint32(blob[0:4]))
	count = int(binary.LittleEndian.Uint32(blob[4:8]))
	size = postingHeaderSize + idBytes + count
	if size > len(blob) || idBytes < 0 || count < 0 {
		return 0, 0, 0, pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
			"posting claims %d bytes, have %d", size, len(blob))
	}
	if idBytes < count || idBytes > count*MaxVarintLen64 {
		return 0, 0, 0, pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
			"posting id section of %d bytes cannot hold %d ids", idBytes, count)
	}
	return idBytes, count, size, nil
}

func encodedSize(entries []Entry) int {
	size := postingHeaderSize + len(entries)
	var prev uint64
	for _, e := range entries {
		size += UvarintLen(e.ID - prev)
		prev = e.ID
	}
	return size
}

func encodeInto(buf []byte, entries []Entry) int {
	off := postingHeaderSize
	var prev uint64
	for _, e := range entries {
		off += PutUvarint(buf[off:], e.ID-prev)
		prev = e.ID
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(off-postingHeaderSize))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(entries)))
	for _, e := range entries {
		buf[off] = e.Count
		off++
	}
	return off
}
