// Package similarity implements the nearest-neighbor matcher the
// investigation pipeline uses to find prior cases in the knowledge store.
//
// Two algorithms exist side by side: cosine similarity over embeddings
// (the primary mode) and a character-overlap ratio for text-only
// comparison when no embeddings are available. Their scores live on
// different scales and each carries its own acceptance threshold.
package similarity

import (
	"math"
	"strings"

	"github.com/ppiankov/anamnesis/internal/model"
)

// Engine scans candidate case records for the best match above a threshold
type Engine struct {
	semanticThreshold float64
	lexicalThreshold  float64
}

// NewEngine creates a matcher with the given thresholds. Zero values fall
// back to the defaults (0.80 semantic, 0.65 lexical).
func NewEngine(cfg model.SimilarityConfig) *Engine {
	e := &Engine{
		semanticThreshold: cfg.SemanticThreshold,
		lexicalThreshold:  cfg.LexicalThreshold,
	}
	if e.semanticThreshold == 0 {
		e.semanticThreshold = 0.80
	}
	if e.lexicalThreshold == 0 {
		e.lexicalThreshold = 0.65
	}
	return e
}

// Cosine returns the cosine similarity of two vectors. Degenerate input
// (either vector nil, empty, mismatched in length, or zero-norm) scores
// 0.0 rather than erroring.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// BestMatch scans all records and returns a copy of the highest-scoring
// candidate when its cosine similarity to query meets the semantic
// threshold, along with the score. Ties keep the first-encountered record.
// No match returns (nil, 0.0).
func (e *Engine) BestMatch(query []float64, records []model.CaseRecord) (*model.CaseRecord, float64) {
	var best *model.CaseRecord
	bestScore := 0.0

	for i := range records {
		score := Cosine(query, records[i].Embedding)
		if score > bestScore {
			bestScore = score
			best = &records[i]
		}
	}

	if best == nil || bestScore < e.semanticThreshold {
		return nil, 0.0
	}

	match := best.Clone()
	return &match, bestScore
}

// BestLexicalMatch is the text-only fallback: it compares normalized
// character-sequence overlap instead of embeddings and applies the lexical
// threshold. The scores are not comparable to cosine scores.
func (e *Engine) BestLexicalMatch(text string, records []model.CaseRecord) (*model.CaseRecord, float64) {
	var best *model.CaseRecord
	bestScore := 0.0

	for i := range records {
		score := LexicalRatio(text, records[i].Text)
		if score > bestScore {
			bestScore = score
			best = &records[i]
		}
	}

	if best == nil || bestScore < e.lexicalThreshold {
		return nil, 0.0
	}

	match := best.Clone()
	return &match, bestScore
}

// LexicalRatio returns a similarity ratio in [0, 1] between two strings,
// case-insensitive: twice the number of characters in matching blocks over
// the total length of both strings. Empty input scores 0.0.
func LexicalRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	matched := matchingChars(ra, rb)
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingChars counts characters covered by matching blocks: the longest
// common substring, then recursively the pieces to its left and right.
func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingChars(a[:ai], b[:bi])
	total += matchingChars(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonSubstring finds the earliest longest run of identical runes
// shared by a and b, returning its start in each and its length.
func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	// lengths[j] = length of common suffix of a[:i+1] and b[:j+1]
	lengths := make([]int, len(b)+1)

	for i := 0; i < len(a); i++ {
		// Walk b right-to-left so lengths[j] still holds the previous row
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lengths[j+1] = lengths[j] + 1
				if lengths[j+1] > size {
					size = lengths[j+1]
					ai = i - size + 1
					bi = j - size + 1
				}
			} else {
				lengths[j+1] = 0
			}
		}
	}

	return ai, bi, size
}
