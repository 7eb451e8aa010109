package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ppiankov/anamnesis/internal/cache"
)

// CachingProvider wraps a Provider and memoizes Embed calls. Embedding the
// same ticket text twice (backfill reruns, repeated investigations) should
// not cost a second API call. Analysis calls are never cached: their inputs
// include mutable memory state.
type CachingProvider struct {
	Provider

	model string
	cache cache.Cache
	ttl   time.Duration
}

// NewCachingProvider wraps the provider with an embedding cache. The
// embedding model is part of every key: vectors from different models have
// different dimensionality and must never answer for each other, even
// across a config change with a warm disk cache.
func NewCachingProvider(p Provider, embeddingModel string, c cache.Cache, ttl time.Duration) *CachingProvider {
	return &CachingProvider{Provider: p, model: embeddingModel, cache: c, ttl: ttl}
}

// Embed returns the cached vector when present, else delegates and stores.
// Cache failures fall through to the underlying provider.
func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cache.KeyForText(p.Name() + ":" + p.model + ":embed:" + text)

	if data, found := p.cache.Get(key); found {
		var vector []float64
		if err := json.Unmarshal(data, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}

	vector, err := p.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vector); err == nil {
		_ = p.cache.Set(key, data, p.ttl)
	}
	return vector, nil
}
