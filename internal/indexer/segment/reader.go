package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
)

// Read loads the partition stored at path for rng. A missing file is not an
// error: Read returns an empty partition and ok == false. Permission and
// decoding failures are returned as errors.
func Read(path string, rng index.Range, opts index.Options) (p *index.Partition, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index.NewPartition(rng, opts), false, nil
		}
		return nil, false, fmt.Errorf("reading partition file %s: %w", path, err)
	}
	p = index.NewPartition(rng, opts)
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("loading partition %s: %w", path, err)
	}
	return p, true, nil
}
