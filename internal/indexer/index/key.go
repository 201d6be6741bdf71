package index

import (
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/arena"
)

// MaxKeyLength is the longest term a Key can hold. Longer terms are
// truncated, not rejected.
const MaxKeyLength = 255

// Key is a length-prefixed byte string laid out as [length:u8][bytes]. The
// backing bytes live in a partition's arena.
type Key []byte

// NewKey truncates term to MaxKeyLength bytes and copies it into pool.
func NewKey(pool *arena.Pool, term string) Key {
	term = Truncate(term)
	k := pool.Allocate(len(term) + 1)
	k[0] = byte(len(term))
	copy(k[1:], term)
	return Key(k)
}

// Truncate cuts term to MaxKeyLength bytes, the form it is stored and
// routed under.
func Truncate(term string) string {
	if len(term) > MaxKeyLength {
		return term[:MaxKeyLength]
	}
	return term
}

// Len returns the stored length.
func (k Key) Len() int {
	if len(k) == 0 {
		return 0
	}
	return int(k[0])
}

// Bytes returns the key content without the length prefix.
func (k Key) Bytes() []byte {
	if len(k) == 0 {
		return nil
	}
	return k[1 : 1+k.Len()]
}

func (k Key) String() string {
	return string(k.Bytes())
}

// Compare orders keys by stored length first and then by bytes. This is the
// order of a dictionary chain, not a lexicographic order.
func (k Key) Compare(other Key) int {
	if d := k.Len() - other.Len(); d != 0 {
		return sign(d)
	}
	return compareBytes(k.Bytes(), other.Bytes())
}

// CompareString compares the key against s over min(len) bytes; on a tie the
// shorter side is less. That makes `key < boundary` a plain prefix-aware
// lexicographic test.
func (k Key) CompareString(s string) int {
	b := k.Bytes()
	n := len(b)
	if len(s) < n {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		if b[i] != s[i] {
			if b[i] < s[i] {
				return -1
			}
			return 1
		}
	}
	return sign(len(b) - len(s))
}

// chainOrder compares a stored key with a query term in chain order.
func chainOrder(k Key, term string) int {
	if d := k.Len() - len(term); d != 0 {
		return sign(d)
	}
	return k.CompareString(term)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return sign(len(a) - len(b))
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}
