package index

import (
	"encoding/binary"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// headerSize covers [page_count:u32][posting_count:u32].
const headerSize = 8

// Size returns the exact number of bytes MarshalTo writes.
func (p *Partition) Size() int {
	size := headerSize + 8*len(p.pageIDs)
	p.Each(func(k Key, posting *Posting) bool {
		size += 1 + k.Len() + posting.EncodedSize()
		return true
	})
	return size
}

// MarshalTo serialises the partition into buf as
//
//	[page_count:u32][posting_count:u32][page_ids: u64 × page_count]
//	{[key_len:u8][key bytes][posting blob]} × posting_count
//
// in little-endian byte order, with postings in chain-traversal order. A
// buffer smaller than Size is rejected with ErrInsufficientBuffer and left
// untouched.
func (p *Partition) MarshalTo(buf []byte) (int, error) {
	need := p.Size()
	if len(buf) < need {
		return 0, pkgerrors.Newf(pkgerrors.ErrInsufficientBuffer,
			"partition %s needs %d bytes, buffer holds %d", p.rng, need, len(buf))
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(p.pageIDs)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.Len()))
	off := headerSize
	for _, id := range p.pageIDs {
		binary.LittleEndian.PutUint64(buf[off:], id)
		off += 8
	}
	p.Each(func(k Key, posting *Posting) bool {
		off += copy(buf[off:], k[:1+k.Len()])
		off += posting.encodeTo(buf[off:])
		return true
	})
	return off, nil
}

// MarshalBinary returns the serialised partition in a buffer of exactly the
// required size.
func (p *Partition) MarshalBinary() ([]byte, error) {
	buf := make([]byte, p.Size())
	n, err := p.MarshalTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// UnmarshalBinary loads data produced by MarshalTo into an empty partition.
// Every entry is linked through the regular chain insertion so the chain
// order holds regardless of the order entries were written in. Posting blobs
// are copied into the arena and stay compressed until first mutated.
func (p *Partition) UnmarshalBinary(data []byte) error {
	if p.Len() != 0 || len(p.pageIDs) != 0 {
		return pkgerrors.New(pkgerrors.ErrInvalidInput, "unmarshal into a non-empty partition")
	}
	if len(data) < headerSize {
		return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "header needs %d bytes, have %d", headerSize, len(data))
	}
	pageCount := int(binary.LittleEndian.Uint32(data[0:4]))
	postingCount := int(binary.LittleEndian.Uint32(data[4:8]))
	off := headerSize
	if len(data)-off < 8*pageCount {
		return pkgerrors.Newf(pkgerrors.ErrCorruptPartition,
			"page table of %d ids truncated at %d bytes", pageCount, len(data))
	}
	p.pageIDs = make([]uint64, pageCount)
	for i := range p.pageIDs {
		p.pageIDs[i] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}

	for i := 0; i < postingCount; i++ {
		if off >= len(data) {
			return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "posting %d of %d missing", i, postingCount)
		}
		keyLen := int(data[off])
		if keyLen == 0 || off+1+keyLen > len(data) {
			return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "key %d has invalid length %d", i, keyLen)
		}
		term := string(data[off+1 : off+1+keyLen])
		off += 1 + keyLen
		if !p.rng.Contains(term) {
			return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "key %q outside %s", term, p.rng)
		}

		_, _, size, err := postingBounds(data[off:])
		if err != nil {
			return err
		}
		b := p.bucket(term)
		prev, cur, found := p.locate(b, term)
		if found {
			return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "duplicate key %q", term)
		}
		idx := p.link(b, prev, cur, NewKey(p.pool, term))
		p.nodes.At(idx).posting = NewFrozenPosting(p.pool.Copy(data[off : off+size]))
		off += size
	}
	if off != len(data) {
		return pkgerrors.Newf(pkgerrors.ErrCorruptPartition, "%d trailing bytes", len(data)-off)
	}
	return nil
}
