// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"math"
)

// VectorStore defines the interface for a vector database.
type VectorStore interface {
	// EnsureCollection creates the collection when it does not exist yet.
	EnsureCollection(ctx context.Context, name string, dimension int) error
	// Upsert adds or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit points ordered by decreasing similarity.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error)
	// Delete removes the points with the given IDs.
	Delete(ctx context.Context, collection string, ids []string) error
	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
	// Scan returns every point of the collection. Vectors may be omitted.
	Scan(ctx context.Context, collection string) ([]Point, error)
}

// Named is implemented by backends that report a name in Stats.
type Named interface {
	Name() string
}

// Point represents a data point in the vector store.
type Point struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// SearchResult represents a result from a vector search.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	// Embed converts a text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
