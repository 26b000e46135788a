package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"codeqa/domain"
)

// CachedClient remembers single-text embeddings, so asking the same query
// twice in a session costs one backend call. Batch calls, like the one that
// embeds the corpus, go straight to the backend.
type CachedClient struct {
	next  domain.EmbeddingClient
	cache *lru.Cache[string, domain.Embedding]
}

// NewCachedClient wraps next with an LRU cache of the given size.
func NewCachedClient(next domain.EmbeddingClient, size int) (*CachedClient, error) {
	cache, err := lru.New[string, domain.Embedding](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedClient{next: next, cache: cache}, nil
}

// GenerateEmbeddings implements domain.EmbeddingClient.
func (c *CachedClient) GenerateEmbeddings(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) != 1 {
		return c.next.GenerateEmbeddings(ctx, texts)
	}

	key := contentHash(texts[0])
	if emb, ok := c.cache.Get(key); ok {
		return []domain.Embedding{append(domain.Embedding(nil), emb...)}, nil
	}

	embeddings, err := c.next.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 1 {
		c.cache.Add(key, append(domain.Embedding(nil), embeddings[0]...))
	}
	return embeddings, nil
}

// Len returns the number of cached embeddings.
func (c *CachedClient) Len() int {
	return c.cache.Len()
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
