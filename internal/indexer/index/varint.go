package index

// MaxVarintLen64 is the longest encoding of a uint64. The first eight bytes
// carry seven payload bits each and the ninth carries the remaining eight,
// so it needs no continuation bit.
const MaxVarintLen64 = 9

// PutUvarint encodes v into buf, little-endian base-128 with the
// continuation flag in the high bit, and returns the number of bytes
// written. buf must hold at least UvarintLen(v) bytes. Values below 2^32
// take at most five bytes.
func PutUvarint(buf []byte, v uint64) int {
	for i := 0; i < MaxVarintLen64-1; i++ {
		if v < 0x80 {
			buf[i] = byte(v)
			return i + 1
		}
		buf[i] = byte(v) | 0x80
		v >>= 7
	}
	buf[MaxVarintLen64-1] = byte(v)
	return MaxVarintLen64
}

// Uvarint decodes a value written by PutUvarint. It returns n == 0 if buf
// ends before the value does.
func Uvarint(buf []byte) (v uint64, n int) {
	for i := 0; i < MaxVarintLen64-1; i++ {
		if i >= len(buf) {
			return 0, 0
		}
		b := buf[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return v, i + 1
		}
	}
	if len(buf) < MaxVarintLen64 {
		return 0, 0
	}
	return v | uint64(buf[MaxVarintLen64-1])<<56, MaxVarintLen64
}

// UvarintLen returns the encoded size of v.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 && n < MaxVarintLen64 {
		v >>= 7
		n++
	}
	return n
}
