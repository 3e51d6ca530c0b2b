// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of NewHashEmbedder(0).
const DefaultHashDimension = 384

// HashEmbedder is an offline, deterministic embedder based on feature
// hashing of lower-cased words. Texts sharing words get similar vectors,
// which is enough for recall without a model backend.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder returns an embedder producing vectors of dimension d.
func NewHashEmbedder(d int) *HashEmbedder {
	if d <= 0 {
		d = DefaultHashDimension
	}
	return &HashEmbedder{dimension: d}
}

// Dimension returns the vector size.
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed returns the L2-normalized hashed bag of words of text.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		_, _ = f.Write([]byte(w))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dimension))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
