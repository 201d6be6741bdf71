package index

import "fmt"

// Range is the half-open key range [Start, End) a partition covers. When
// HasEnd is false the range is unbounded above.
type Range struct {
	Start  string
	End    string
	HasEnd bool
}

// FullRange covers every key.
func FullRange() Range {
	return Range{}
}

// Bounded returns the range [start, end).
func Bounded(start, end string) Range {
	return Range{Start: start, End: end, HasEnd: true}
}

// From returns the unbounded range [start, ∞).
func From(start string) Range {
	return Range{Start: start}
}

// Contains reports whether term falls inside the range.
func (r Range) Contains(term string) bool {
	if term < r.Start {
		return false
	}
	return !r.HasEnd || term < r.End
}

// ContainsKey is Contains for a stored key.
func (r Range) ContainsKey(k Key) bool {
	if k.CompareString(r.Start) < 0 {
		return false
	}
	return !r.HasEnd || k.CompareString(r.End) < 0
}

// Overlaps reports whether the two ranges share at least one key.
func (r Range) Overlaps(other Range) bool {
	if r.HasEnd && other.Start >= r.End {
		return false
	}
	if other.HasEnd && r.Start >= other.End {
		return false
	}
	return true
}

func (r Range) String() string {
	if !r.HasEnd {
		return fmt.Sprintf("[%q, ∞)", r.Start)
	}
	return fmt.Sprintf("[%q, %q)", r.Start, r.End)
}
