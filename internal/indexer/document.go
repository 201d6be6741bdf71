package indexer

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
)

// Document is one tokenized page as produced upstream.
type Document struct {
	ID     uint64   `json:"document_id"`
	Tokens []string `json:"tokens"`
}

// Terms returns the terms of granularity g: single tokens for Word, and
// space-joined runs of two or three adjacent tokens for Pair and Trine.
// Empty tokens are dropped first.
func Terms(tokens []string, g segment.Granularity) []string {
	width := 1
	switch g {
	case segment.Pair:
		width = 2
	case segment.Trine:
		width = 3
	}
	words := nonEmpty(tokens)
	if len(words) < width {
		return nil
	}
	if width == 1 {
		return words
	}
	terms := make([]string, 0, len(words)-width+1)
	for i := 0; i+width <= len(words); i++ {
		terms = append(terms, strings.Join(words[i:i+width], " "))
	}
	return terms
}

func nonEmpty(tokens []string) []string {
	for _, t := range tokens {
		if t == "" {
			out := make([]string, 0, len(tokens))
			for _, t := range tokens {
				if t != "" {
					out = append(out, t)
				}
			}
			return out
		}
	}
	return tokens
}
