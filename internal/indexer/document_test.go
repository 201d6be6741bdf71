package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
)

func TestTerms(t *testing.T) {
	tokens := []string{"the", "quick", "", "brown", "fox"}

	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, Terms(tokens, segment.Word))
	assert.Equal(t, []string{"the quick", "quick brown", "brown fox"}, Terms(tokens, segment.Pair))
	assert.Equal(t, []string{"the quick brown", "quick brown fox"}, Terms(tokens, segment.Trine))
}

func TestTermsShortDocuments(t *testing.T) {
	assert.Nil(t, Terms(nil, segment.Word))
	assert.Nil(t, Terms([]string{"solo"}, segment.Pair))
	assert.Nil(t, Terms([]string{"a", "b"}, segment.Trine))
	assert.Equal(t, []string{"a b"}, Terms([]string{"a", "b"}, segment.Pair))
}
