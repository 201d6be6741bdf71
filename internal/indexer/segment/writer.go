// Package segment stores serialised index partitions as files. Writes go to
// a temporary file that is synced and renamed into place, so readers only
// ever observe complete partitions.
package segment

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
)

// Extension is the file suffix of a partition file.
const Extension = ".part"

// Granularity names the kind of term a partition holds.
type Granularity string

const (
	Word  Granularity = "word"
	Pair  Granularity = "pair"
	Trine Granularity = "trine"
)

// Granularities lists every granularity in manifest order.
var Granularities = []Granularity{Word, Pair, Trine}

// FileName returns the conventional name of shard i of a granularity.
func FileName(g Granularity, shard int) string {
	return fmt.Sprintf("%s_%04d%s", g, shard, Extension)
}

// Writer writes partition files into one directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes partitions into dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Dir returns the directory the writer writes into.
func (w *Writer) Dir() string {
	return w.dataDir
}

// Write serialises p into dataDir/name and returns the final path and the
// number of bytes written.
func (w *Writer) Write(name string, p *index.Partition) (string, int, error) {
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", 0, fmt.Errorf("creating partition directory: %w", err)
	}
	path := filepath.Join(w.dataDir, name)
	n, err := Write(path, p)
	return path, n, err
}

// Write atomically replaces the file at path with the serialised partition.
func Write(path string, p *index.Partition) (int, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("serialising partition %s: %w", p.Range(), err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp partition file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing partition file: %w", err)
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("syncing partition file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing partition file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming partition file: %w", err)
	}
	return len(data), nil
}
