package indexer

import "time"

// Kinds of IndexCompleteEvent.
const (
	KindBuild = "build"
	KindMerge = "merge"
)

// IndexCompleteEvent announces a new manifest on the index.complete topic.
type IndexCompleteEvent struct {
	Kind         string    `json:"kind"`
	ManifestPath string    `json:"manifest_path"`
	Documents    int       `json:"documents"`
	Parts        int       `json:"parts"`
	CompletedAt  time.Time `json:"completed_at"`
}
