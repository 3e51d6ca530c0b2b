// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package chromem implements memory.VectorStore on chromem-go, an embedded
// vector database that can persist to a local directory.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/memory"
)

const metaTimestamp = "_ts"

// Store is a chromem-go backed vector store. Documents carry precomputed
// embeddings, so collections never call an embedding function.
type Store struct {
	db         *chromem.DB
	mu         sync.Mutex
	dimensions map[string]int
}

// New opens (or creates) a persistent database in dir.
func New(dir string, compress bool) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "open chromem database", err).WithContext("dir", dir)
	}
	return &Store{db: db, dimensions: make(map[string]int)}, nil
}

// NewInMemory creates a non-persistent database.
func NewInMemory() *Store {
	return &Store{db: chromem.NewDB(), dimensions: make(map[string]int)}
}

func (s *Store) Name() string { return "chromem" }

func precomputed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: embeddings must be precomputed")
}

// EnsureCollection creates name or, when it already holds documents,
// checks that they have the requested dimension.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := map[string]string{"dimension": strconv.Itoa(dimension)}
	c, err := s.db.GetOrCreateCollection(name, meta, precomputed)
	if err != nil {
		return errors.New(errors.CodeStorage, "create chromem collection", err).WithContext("collection", name)
	}
	if err := checkDimension(ctx, c, dimension); err != nil {
		return err
	}
	s.dimensions[name] = dimension
	return nil
}

// checkDimension reads one stored document back. chromem only compares
// vectors of equal length, so a failed single-result query on a non-empty
// collection means the stored vectors have another dimension.
func checkDimension(ctx context.Context, c *chromem.Collection, dimension int) error {
	if c.Count() == 0 || dimension <= 0 {
		return nil
	}
	probe := make([]float32, dimension)
	probe[0] = 1
	res, err := c.QueryEmbedding(ctx, probe, 1, nil, nil)
	if err != nil {
		return errors.New(errors.CodeDimensionMismatch, "stored vectors do not match the embedder", err).
			WithContext("collection", c.Name).
			WithContext("dimension", dimension)
	}
	if len(res) > 0 && len(res[0].Embedding) != dimension {
		return errors.Newf(errors.CodeDimensionMismatch, "collection %s has dimension %d, want %d", c.Name, len(res[0].Embedding), dimension)
	}
	return nil
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, precomputed)
	if c == nil {
		return nil, errors.Newf(errors.CodeNotFound, "collection %s does not exist", name)
	}
	return c, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, points []memory.Point) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		meta := memory.EncodePayload(p.Payload)
		delete(meta, memory.PayloadKeyText)
		meta[metaTimestamp] = strconv.FormatInt(p.Timestamp, 10)
		doc := chromem.Document{
			ID:        p.ID,
			Metadata:  meta,
			Embedding: nonZero(p.Vector),
			Content:   memory.PayloadString(p.Payload, memory.PayloadKeyText),
		}
		if err := c.AddDocument(ctx, doc); err != nil {
			return errors.New(errors.CodeStorage, "add chromem document", err).WithContext("id", p.ID)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]memory.SearchResult, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if limit < n {
		n = limit
	}
	if n <= 0 {
		return nil, nil
	}
	res, err := c.QueryEmbedding(ctx, nonZero(vector), n, nil, nil)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "query chromem collection", err)
	}
	out := make([]memory.SearchResult, len(res))
	for i, r := range res {
		out[i] = memory.SearchResult{ID: r.ID, Score: r.Similarity, Point: toPoint(r)}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return errors.New(errors.CodeStorage, "delete chromem documents", err)
	}
	return nil
}

func (s *Store) Count(_ context.Context, collection string) (int, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Scan lists every document by querying with an arbitrary unit vector for
// all results, oldest first.
func (s *Store) Scan(ctx context.Context, collection string) ([]memory.Point, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	s.mu.Lock()
	dim := s.dimensions[collection]
	s.mu.Unlock()
	if dim <= 0 {
		return nil, errors.Newf(errors.CodeStorage, "unknown dimension for collection %s", collection)
	}
	probe := make([]float32, dim)
	probe[0] = 1
	res, err := c.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "scan chromem collection", err)
	}
	points := make([]memory.Point, len(res))
	for i, r := range res {
		points[i] = toPoint(r)
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Timestamp != points[j].Timestamp {
			return points[i].Timestamp < points[j].Timestamp
		}
		return points[i].ID < points[j].ID
	})
	return points, nil
}

func toPoint(r chromem.Result) memory.Point {
	payload := memory.DecodePayload(r.Metadata)
	delete(payload, metaTimestamp)
	payload[memory.PayloadKeyText] = r.Content
	ts, _ := strconv.ParseInt(r.Metadata[metaTimestamp], 10, 64)
	return memory.Point{
		ID:        r.ID,
		Vector:    r.Embedding,
		Payload:   payload,
		Timestamp: ts,
	}
}

// nonZero keeps chromem from normalizing a zero vector into NaNs.
func nonZero(v []float32) []float32 {
	for _, x := range v {
		if x != 0 {
			return v
		}
	}
	if len(v) == 0 {
		return v
	}
	out := make([]float32, len(v))
	out[len(out)-1] = 1e-6
	return out
}
