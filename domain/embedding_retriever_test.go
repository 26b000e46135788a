package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns the vector registered for each text and records calls.
type fakeEmbedder struct {
	vectors map[string]Embedding
	calls   [][]string
	err     error
	short   bool
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([]Embedding, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Embedding, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectors[t])
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func vectorCorpus(t *testing.T) (*Corpus, *fakeEmbedder) {
	corpus := mustCorpus(t,
		Snippet{Key: "s0", Content: "def a"},
		Snippet{Key: "s1", Content: "def b"},
		Snippet{Key: "s2", Content: "def c"},
		Snippet{Key: "s3", Content: "def d"},
	)
	embedder := &fakeEmbedder{vectors: map[string]Embedding{
		"def a": {1, 0},
		"def b": {0, 1},
		"def c": {1, 1},
		"def d": {-1, 0},
		"q":     {1, 0.1},
		"tie":   {0, 0},
		"y":     {0, 2},
	}}
	return corpus, embedder
}

func TestEmbeddingRetriever_Retrieve(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	r, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 0, nil)
	require.NoError(t, err)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, corpus.Texts(), embedder.calls[0])

	results, err := r.Retrieve(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "s0", results[0].Key)
	assert.Equal(t, "s2", results[1].Key)
	assert.Equal(t, "s1", results[2].Key)
	assert.Equal(t, "def a", results[0].Content)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, []string{"q"}, embedder.calls[1])

	// No threshold: the opposite vector still comes back when k covers it.
	all, err := r.Retrieve(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "s3", all[3].Key)
	assert.Less(t, all[3].Score, 0.0)
}

func TestEmbeddingRetriever_TiesKeepCorpusOrder(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	r, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 0, nil)
	require.NoError(t, err)

	// A zero query vector scores 0 against everything.
	results, err := r.Retrieve(context.Background(), "tie", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{results[0].Index, results[1].Index, results[2].Index})

	results, err = r.Retrieve(context.Background(), "y", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].Key)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestEmbeddingRetriever_EmptyCorpusNeverCallsEmbedder(t *testing.T) {
	embedder := &fakeEmbedder{}
	r, err := NewEmbeddingRetriever(context.Background(), mustCorpus(t), embedder, 10, nil)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, embedder.calls)
}

func TestEmbeddingRetriever_Batches(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	_, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 3, nil)
	require.NoError(t, err)
	require.Len(t, embedder.calls, 2)
	assert.Equal(t, []string{"def a", "def b", "def c"}, embedder.calls[0])
	assert.Equal(t, []string{"def d"}, embedder.calls[1])
}

func TestEmbeddingRetriever_CorpusFailureIsFatal(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	embedder.err = errors.New("backend down")

	_, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingBackend)
	assert.Contains(t, err.Error(), "backend down")
}

func TestEmbeddingRetriever_CountMismatch(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	embedder.short = true

	_, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 0, nil)
	assert.ErrorIs(t, err, ErrEmbeddingBackend)
}

func TestEmbeddingRetriever_QueryFailure(t *testing.T) {
	corpus, embedder := vectorCorpus(t)
	r, err := NewEmbeddingRetriever(context.Background(), corpus, embedder, 0, nil)
	require.NoError(t, err)

	embedder.err = errors.New("timeout")
	results, err := r.Retrieve(context.Background(), "q", 3)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrEmbeddingBackend)
	assert.Equal(t, StrategyEmbedding, r.Strategy())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity(Embedding{1, 2, 3}, Embedding{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(Embedding{1, 0}, Embedding{-3, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(Embedding{1, 0}, Embedding{0, 5}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(Embedding{0, 0}, Embedding{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity(Embedding{1}, Embedding{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}
