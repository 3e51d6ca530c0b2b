// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jllopis/autoagent/pkg/errors"
)

// InMemoryVectorStore is an exact-search VectorStore kept in process
// memory. It suits tests and ephemeral sessions.
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*inmemoryCollection
}

type inmemoryCollection struct {
	dimension int
	points    map[string]Point
}

// NewInMemoryVectorStore creates an empty store.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{collections: make(map[string]*inmemoryCollection)}
}

func (s *InMemoryVectorStore) Name() string { return "inmemory" }

func (s *InMemoryVectorStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dimension != dimension {
			return errors.Newf(errors.CodeDimensionMismatch, "collection %s has dimension %d, want %d", name, c.dimension, dimension)
		}
		return nil
	}
	s.collections[name] = &inmemoryCollection{dimension: dimension, points: make(map[string]Point)}
	return nil
}

func (s *InMemoryVectorStore) collection(name string) (*inmemoryCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "collection %s does not exist", name)
	}
	return c, nil
}

func (s *InMemoryVectorStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return errors.Newf(errors.CodeDimensionMismatch, "point %s has dimension %d, want %d", p.ID, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		p.Payload = copyPayload(p.Payload)
		c.points[p.ID] = p
	}
	return nil
}

func (s *InMemoryVectorStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimension {
		return nil, errors.Newf(errors.CodeDimensionMismatch, "query has dimension %d, want %d", len(vector), c.dimension)
	}
	results := make([]SearchResult, 0, len(c.points))
	for id, p := range c.points {
		results = append(results, SearchResult{ID: id, Score: Cosine(vector, p.Vector), Point: clonePoint(p)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Point.Timestamp != results[j].Point.Timestamp {
			return results[i].Point.Timestamp > results[j].Point.Timestamp
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *InMemoryVectorStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func (s *InMemoryVectorStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(c.points), nil
}

func (s *InMemoryVectorStore) Scan(_ context.Context, collection string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(c.points))
	for _, p := range c.points {
		out = append(out, clonePoint(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func clonePoint(p Point) Point {
	p.Vector = append([]float32(nil), p.Vector...)
	p.Payload = copyPayload(p.Payload)
	return p
}

func copyPayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
