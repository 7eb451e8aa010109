// Package cache provides the embedding cache: memory for the hot set,
// disk for persistence across runs, layered for both.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// KeyForText generates a cache key from arbitrary text. The model name is
// part of the text so vectors from different embedding models never collide.
func KeyForText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return "anamnesis:v1:" + hex.EncodeToString(hash[:])
}
