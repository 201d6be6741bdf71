// Package manifest records which partition files make up an index and the
// corpus statistics ranking needs. A manifest is written once per build
// flush or merge round and read by later merges and by the searcher.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/errors"
)

// FileName is the conventional manifest name inside an index directory.
const FileName = "manifest.json"

// Part is one partition file and the range it covers. A nil End means the
// range is unbounded above.
type Part struct {
	Path  string  `json:"path"`
	Start string  `json:"start"`
	End   *string `json:"end"`
}

// NewPart describes the file at path holding rng.
func NewPart(path string, rng index.Range) Part {
	part := Part{Path: path, Start: rng.Start}
	if rng.HasEnd {
		end := rng.End
		part.End = &end
	}
	return part
}

// Resolve returns the file path of the part. Relative paths are relative to
// the directory holding the manifest at manifestPath.
func (p Part) Resolve(manifestPath string) string {
	if filepath.IsAbs(p.Path) {
		return p.Path
	}
	return filepath.Join(filepath.Dir(manifestPath), p.Path)
}

// Range returns the key range of the part.
func (p Part) Range() index.Range {
	if p.End == nil {
		return index.From(p.Start)
	}
	return index.Bounded(p.Start, *p.End)
}

// Manifest lists the partition files per granularity, each list sorted by
// start boundary, together with per-document lengths. A merged manifest also
// lists the manifests folded into it, so later rounds do not fold them again.
type Manifest struct {
	AveragePageLength float64           `json:"average_page_length"`
	PageLengths       map[uint64]uint32 `json:"page_lengths"`
	TotalPages        uint64            `json:"total_pages"`
	WordParts         []Part            `json:"word_parts"`
	PairParts         []Part            `json:"pair_parts"`
	TrineParts        []Part            `json:"trine_parts"`
	Sources           []string          `json:"sources,omitempty"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		PageLengths: make(map[uint64]uint32),
		WordParts:   []Part{},
		PairParts:   []Part{},
		TrineParts:  []Part{},
	}
}

// Parts returns the parts of granularity g.
func (m *Manifest) Parts(g segment.Granularity) []Part {
	switch g {
	case segment.Pair:
		return m.PairParts
	case segment.Trine:
		return m.TrineParts
	default:
		return m.WordParts
	}
}

// SetParts replaces the parts of granularity g, sorting them by start.
func (m *Manifest) SetParts(g segment.Granularity, parts []Part) {
	sorted := append([]Part{}, parts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	switch g {
	case segment.Pair:
		m.PairParts = sorted
	case segment.Trine:
		m.TrineParts = sorted
	default:
		m.WordParts = sorted
	}
}

// Lookup returns the part of granularity g whose range contains term. It
// relies on the parts being sorted and contiguous, as written by the build
// and merge phases.
func (m *Manifest) Lookup(g segment.Granularity, term string) (Part, bool) {
	parts := m.Parts(g)
	i := sort.Search(len(parts), func(i int) bool {
		return parts[i].Start > term
	}) - 1
	if i < 0 || !parts[i].Range().Contains(term) {
		return Part{}, false
	}
	return parts[i], true
}

// SetPageLength records the token count of a document.
func (m *Manifest) SetPageLength(id uint64, length uint32) {
	if m.PageLengths == nil {
		m.PageLengths = make(map[uint64]uint32)
	}
	m.PageLengths[id] = length
	m.recompute()
}

// PageLength returns the recorded length of a document.
func (m *Manifest) PageLength(id uint64) (uint32, bool) {
	l, ok := m.PageLengths[id]
	return l, ok
}

// AddPageLengths records the token counts of many documents at once.
func (m *Manifest) AddPageLengths(lengths map[uint64]uint32) {
	if m.PageLengths == nil {
		m.PageLengths = make(map[uint64]uint32, len(lengths))
	}
	for id, l := range lengths {
		m.PageLengths[id] = l
	}
	m.recompute()
}

// Absorb adds the document lengths of other. Parts are not touched; the
// merge coordinator replaces them with its own outputs.
func (m *Manifest) Absorb(other *Manifest) {
	m.AddPageLengths(other.PageLengths)
}

// AddSource records that the manifest at p was folded into m. Paths are
// kept slash-separated and relative to base, the directory holding m's own
// directory, when they lie below it.
func (m *Manifest) AddSource(base, p string) {
	src := relativeTo(base, p)
	i := sort.SearchStrings(m.Sources, src)
	if i < len(m.Sources) && m.Sources[i] == src {
		return
	}
	m.Sources = append(m.Sources, "")
	copy(m.Sources[i+1:], m.Sources[i:])
	m.Sources[i] = src
}

// InheritSources records every source of other, the manifest loaded from
// otherPath, as a source of m.
func (m *Manifest) InheritSources(base, otherPath string, other *Manifest) {
	otherBase := filepath.Dir(filepath.Dir(otherPath))
	for _, src := range other.Sources {
		p := filepath.FromSlash(src)
		if !filepath.IsAbs(p) {
			p = filepath.Join(otherBase, p)
		}
		m.AddSource(base, p)
	}
}

// Covers reports whether the manifest at p was folded into m, where m
// lives one directory below base.
func (m *Manifest) Covers(base, p string) bool {
	src := relativeTo(base, p)
	i := sort.SearchStrings(m.Sources, src)
	return i < len(m.Sources) && m.Sources[i] == src
}

// LastSourceSeq returns the highest n among sources whose directory is named
// prefix followed by n.
func (m *Manifest) LastSourceSeq(prefix string) (seq int, ok bool) {
	for _, src := range m.Sources {
		var n int
		if _, err := fmt.Sscanf(path.Base(path.Dir(src)), prefix+"%d", &n); err != nil {
			continue
		}
		if !ok || n > seq {
			seq, ok = n, true
		}
	}
	return seq, ok
}

func relativeTo(base, p string) string {
	if rel, err := filepath.Rel(base, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(filepath.Clean(p))
}

func (m *Manifest) recompute() {
	m.TotalPages = uint64(len(m.PageLengths))
	if m.TotalPages == 0 {
		m.AveragePageLength = 0
		return
	}
	var sum uint64
	for _, l := range m.PageLengths {
		sum += uint64(l)
	}
	m.AveragePageLength = float64(sum) / float64(m.TotalPages)
}

// Validate checks that every granularity's parts are sorted, contiguous and
// start at the empty string.
func (m *Manifest) Validate() error {
	for _, g := range segment.Granularities {
		parts := m.Parts(g)
		for i, p := range parts {
			if i == 0 && p.Start != "" {
				return pkgerrors.Newf(pkgerrors.ErrInvalidInput, "%s parts start at %q", g, p.Start)
			}
			if i+1 < len(parts) {
				if p.End == nil || *p.End != parts[i+1].Start {
					return pkgerrors.Newf(pkgerrors.ErrInvalidInput, "%s part %d does not meet part %d", g, i, i+1)
				}
			} else if p.End != nil {
				return pkgerrors.Newf(pkgerrors.ErrInvalidInput, "last %s part is bounded at %q", g, *p.End)
			}
		}
	}
	return nil
}

// Load reads the manifest at path. A missing file yields an empty manifest
// and ok == false.
func Load(path string) (m *Manifest, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), false, nil
		}
		return nil, false, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m = New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, false, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.PageLengths == nil {
		m.PageLengths = make(map[uint64]uint32)
	}
	sort.Strings(m.Sources)
	m.recompute()
	return m, true, nil
}

// Save atomically writes the manifest to path.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Discover returns the manifests under root matching pattern, for example
// "build-*/manifest.json", in lexical order.
func Discover(root, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %q under %s: %w", pattern, root, err)
	}
	sort.Strings(matches)
	paths := make([]string, len(matches))
	for i, match := range matches {
		paths[i] = filepath.Join(root, filepath.FromSlash(match))
	}
	return paths, nil
}

// Latest finds the highest numbered directory named prefix followed by a
// round number under root that holds a manifest. ok is false when there is
// none, in which case round is zero.
func Latest(root, prefix string) (path string, round int, ok bool, err error) {
	paths, err := Discover(root, prefix+"*/"+FileName)
	if err != nil {
		return "", 0, false, err
	}
	for _, p := range paths {
		var n int
		if _, err := fmt.Sscanf(filepath.Base(filepath.Dir(p)), prefix+"%d", &n); err != nil {
			continue
		}
		if !ok || n > round {
			path, round, ok = p, n, true
		}
	}
	return path, round, ok, nil
}
