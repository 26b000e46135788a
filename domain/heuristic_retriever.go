package domain

import (
	"context"
	"math"
	"strings"
)

// DefaultScoreThreshold is the composite score a snippet must exceed to be
// returned by the HeuristicRetriever.
const DefaultScoreThreshold = 0.05

// HeuristicWeights are the coefficients of the composite score. They should
// sum to 1 so that the composite stays within [0,1].
type HeuristicWeights struct {
	WordOverlap       float64 `json:"word_overlap"`
	SubstringCoverage float64 `json:"substring_coverage"`
	Sequence          float64 `json:"sequence"`
}

// DefaultHeuristicWeights weight word overlap 0.4, substring coverage 0.3
// and sequence similarity 0.3.
var DefaultHeuristicWeights = HeuristicWeights{
	WordOverlap:       0.4,
	SubstringCoverage: 0.3,
	Sequence:          0.3,
}

// HeuristicOptions configures a HeuristicRetriever.
type HeuristicOptions struct {
	Weights   HeuristicWeights
	Threshold float64
}

// DefaultHeuristicOptions returns the default weights and threshold.
func DefaultHeuristicOptions() HeuristicOptions {
	return HeuristicOptions{Weights: DefaultHeuristicWeights, Threshold: DefaultScoreThreshold}
}

// HeuristicScore breaks a composite score into its signals.
type HeuristicScore struct {
	WordOverlap       float64
	SubstringCoverage float64
	Sequence          float64
	Composite         float64
}

// HeuristicRetriever ranks snippets with lexical signals only: word
// overlap, substring coverage and a Ratcliff/Obershelp sequence ratio.
type HeuristicRetriever struct {
	corpus  *Corpus
	lowered []string
	words   []map[string]struct{}
	opts    HeuristicOptions
}

// NewHeuristicRetriever prepares the lower-cased text and word set of every
// snippet of corpus.
func NewHeuristicRetriever(corpus *Corpus, opts HeuristicOptions) *HeuristicRetriever {
	texts := corpus.Texts()
	r := &HeuristicRetriever{
		corpus:  corpus,
		lowered: make([]string, len(texts)),
		words:   make([]map[string]struct{}, len(texts)),
		opts:    opts,
	}
	for i, t := range texts {
		r.lowered[i] = strings.ToLower(t)
		r.words[i] = wordSet(r.lowered[i])
	}
	return r
}

// Strategy implements Retriever.
func (r *HeuristicRetriever) Strategy() Strategy {
	return StrategyHeuristic
}

// Retrieve implements Retriever. Snippets scoring at or below the threshold
// are never returned.
func (r *HeuristicRetriever) Retrieve(ctx context.Context, query string, k int) ([]RankedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.corpus.Len() == 0 || k <= 0 {
		return nil, nil
	}

	q := newLexicalQuery(query)
	scores := make([]float64, len(r.lowered))
	for i := range r.lowered {
		scores[i] = r.score(q, r.lowered[i], r.words[i]).Composite
	}

	threshold := r.opts.Threshold
	return topK(scoreCorpus(r.corpus, scores), k, func(res RankedResult) bool {
		return res.Score > threshold
	}), nil
}

// Score computes the signals of query against a single snippet text.
func (r *HeuristicRetriever) Score(query, snippet string) HeuristicScore {
	lowered := strings.ToLower(snippet)
	return r.score(newLexicalQuery(query), lowered, wordSet(lowered))
}

type lexicalQuery struct {
	text  string
	words map[string]struct{}
}

func newLexicalQuery(query string) lexicalQuery {
	lowered := strings.ToLower(query)
	return lexicalQuery{text: lowered, words: wordSet(lowered)}
}

func (r *HeuristicRetriever) score(q lexicalQuery, snippet string, snippetWords map[string]struct{}) HeuristicScore {
	var s HeuristicScore
	if n := len(q.words); n > 0 {
		var common, covered int
		for w := range q.words {
			if _, ok := snippetWords[w]; ok {
				common++
			}
			if strings.Contains(snippet, w) {
				covered++
			}
		}
		s.WordOverlap = float64(common) / float64(n)
		s.SubstringCoverage = float64(covered) / float64(n)
	}
	s.Sequence = SequenceRatio(q.text, snippet)

	w := r.opts.Weights
	composite := w.WordOverlap*s.WordOverlap + w.SubstringCoverage*s.SubstringCoverage + w.Sequence*s.Sequence
	s.Composite = math.Max(0, math.Min(1, composite))
	return s
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
