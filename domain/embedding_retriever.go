package domain

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultEmbeddingBatchSize bounds the number of texts per embedder call
// while the index is built.
const DefaultEmbeddingBatchSize = 100

// EmbeddingRetriever ranks snippets by cosine similarity between the query
// embedding and the snippet embeddings computed at construction.
type EmbeddingRetriever struct {
	corpus   *Corpus
	index    *VectorIndex
	embedder EmbeddingClient
	logger   *zap.Logger
}

// NewEmbeddingRetriever embeds every snippet of corpus, in corpus order,
// and keeps the vectors for the lifetime of the retriever. Any embedder
// failure is returned as an EmbeddingBackend error; the index cannot be
// built without it. An empty corpus makes no embedder call.
func NewEmbeddingRetriever(ctx context.Context, corpus *Corpus, embedder EmbeddingClient, batchSize int, logger *zap.Logger) (*EmbeddingRetriever, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}

	texts := corpus.Texts()
	vectors := make([]Embedding, 0, len(texts))
	batches := (len(texts) + batchSize - 1) / batchSize

	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))

		logger.Debug("embedding corpus batch",
			zap.Int("batch", i/batchSize+1),
			zap.Int("batches", batches),
			zap.Int("from", i+1),
			zap.Int("to", end))

		batch, err := embedder.GenerateEmbeddings(ctx, texts[i:end])
		if err != nil {
			return nil, NewError(EmbeddingBackend, "embed corpus",
				fmt.Errorf("snippets %d-%d: %w", i+1, end, err))
		}
		if len(batch) != end-i {
			return nil, NewError(EmbeddingBackend, "embed corpus",
				fmt.Errorf("mismatch between number of texts (%d) and embeddings (%d)", end-i, len(batch)))
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) > 0 {
		logger.Info("corpus embedded", zap.Int("snippets", len(vectors)), zap.Int("dimension", len(vectors[0])))
	}

	return &EmbeddingRetriever{
		corpus:   corpus,
		index:    NewVectorIndex(vectors),
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Strategy implements Retriever.
func (r *EmbeddingRetriever) Strategy() Strategy {
	return StrategyEmbedding
}

// Retrieve implements Retriever. Every snippet is scored and the k most
// similar are returned regardless of how low their similarity is.
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, k int) ([]RankedResult, error) {
	if r.corpus.Len() == 0 || k <= 0 {
		return nil, nil
	}

	embeddings, err := r.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, NewError(EmbeddingBackend, "embed query", err)
	}
	if len(embeddings) != 1 {
		return nil, NewError(EmbeddingBackend, "embed query",
			fmt.Errorf("expected 1 embedding, got %d", len(embeddings)))
	}

	scores := r.index.Similarities(embeddings[0])
	return topK(scoreCorpus(r.corpus, scores), k, nil), nil
}
