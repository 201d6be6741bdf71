package merge

import (
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
)

// Round is the input selection of the next merge round under a data
// directory.
type Round struct {
	Number int
	OutDir string
	// Previous is the latest merged manifest, empty when there is none.
	Previous string
	// Builds are the build manifests Previous has not folded in yet.
	Builds []string
}

// Inputs returns the manifests the round merges, Previous first.
func (r Round) Inputs() []string {
	if r.Previous == "" {
		return append([]string(nil), r.Builds...)
	}
	return append([]string{r.Previous}, r.Builds...)
}

// PlanRound selects the inputs of the next round under root: the latest
// manifest in a directory named outputPrefix plus a round number, and every
// manifest matching buildPattern that it does not list as a source.
func PlanRound(root, buildPattern, outputPrefix string) (Round, error) {
	builds, err := manifest.Discover(root, buildPattern)
	if err != nil {
		return Round{}, err
	}
	latest, n, ok, err := manifest.Latest(root, outputPrefix)
	if err != nil {
		return Round{}, err
	}
	r := Round{
		Number: n + 1,
		OutDir: filepath.Join(root, fmt.Sprintf("%s%06d", outputPrefix, n+1)),
	}
	covered := manifest.New()
	if ok {
		m, found, err := manifest.Load(latest)
		if err != nil {
			return Round{}, err
		}
		if found {
			r.Previous = latest
			covered = m
		}
	}
	for _, b := range builds {
		if covered.Covers(root, b) {
			continue
		}
		r.Builds = append(r.Builds, b)
	}
	return r, nil
}
