package rag

import (
	"hash/fnv"
	"strings"
)

// HashEmbedding spreads the lowercased words of text over dims buckets.
// It is only stable, not semantic: demo data and the CLI use it so that
// seeded chunks and typed questions sharing words land near each other.
func HashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	if dims <= 0 {
		return v
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}
