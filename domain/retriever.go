package domain

import (
	"context"
	"fmt"
	"sort"
)

// DefaultTopK is the number of snippets retrieved per query.
const DefaultTopK = 3

// Strategy names a retrieval variant.
type Strategy string

const (
	StrategyEmbedding Strategy = "embedding"
	StrategyHeuristic Strategy = "heuristic"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyEmbedding, StrategyHeuristic:
		return Strategy(s), nil
	default:
		return "", NewError(Configuration, "parse strategy",
			fmt.Errorf("unknown retrieval strategy %q (want %q or %q)", s, StrategyEmbedding, StrategyHeuristic))
	}
}

// RankedResult is one retrieved snippet with its score.
type RankedResult struct {
	Key     string  `json:"key"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Index   int     `json:"index"` // Corpus position, the tie-break for equal scores
}

// Retriever ranks corpus snippets against a free-text query.
//
// Retrieve returns at most k results ordered by descending score; equal
// scores keep corpus order. An empty result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]RankedResult, error)
	Strategy() Strategy
}

// IndexState is everything built at start-up that the query loop reads.
type IndexState struct {
	Corpus    *Corpus
	Retriever Retriever
}

// scoreCorpus pairs each snippet with its score, in corpus order.
func scoreCorpus(c *Corpus, scores []float64) []RankedResult {
	results := make([]RankedResult, len(scores))
	for i, score := range scores {
		s := c.At(i)
		results[i] = RankedResult{Key: s.Key, Content: s.Content, Score: score, Index: i}
	}
	return results
}

// topK sorts results by descending score, keeping corpus order among
// equals, drops those rejected by keep and returns the first k.
func topK(results []RankedResult, k int, keep func(RankedResult) bool) []RankedResult {
	if k <= 0 {
		return nil
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})

	out := make([]RankedResult, 0, k)
	for _, r := range results {
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out
}
