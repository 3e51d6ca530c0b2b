// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/resilience"
)

// Collection partitions the memory by record role.
type Collection string

const (
	CollectionConversation Collection = "conversation"
	CollectionFact         Collection = "fact"
	CollectionToolUsage    Collection = "tool-usage"
	CollectionPreference   Collection = "preference"
)

// Collections lists every collection in a stable order.
var Collections = []Collection{
	CollectionConversation,
	CollectionFact,
	CollectionToolUsage,
	CollectionPreference,
}

// DefaultLimits returns the maximum number of records per collection.
func DefaultLimits() map[Collection]int {
	return map[Collection]int{
		CollectionConversation: 1000,
		CollectionFact:         500,
		CollectionToolUsage:    500,
		CollectionPreference:   200,
	}
}

// Record is one unit of long-term memory. Records are immutable once
// written and removed only by cleanup.
type Record struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"-"`
	Collection Collection        `json:"collection"`
	Timestamp  time.Time         `json:"timestamp"`
	Confidence float64           `json:"confidence,omitempty"`
	Source     string            `json:"source,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Match is a record retrieved by similarity.
type Match struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// CollectionStats describes one collection.
type CollectionStats struct {
	Count       int   `json:"count" yaml:"count"`
	Limit       int   `json:"limit" yaml:"limit"`
	ApproxBytes int64 `json:"approx_bytes" yaml:"approx_bytes"`
}

// Stats summarizes the store.
type Stats struct {
	Backend     string                         `json:"backend" yaml:"backend"`
	Dimension   int                            `json:"dimension" yaml:"dimension"`
	Collections map[Collection]CollectionStats `json:"collections" yaml:"collections"`
	Total       int                            `json:"total" yaml:"total"`
}

// Store is the agent's long-term semantic memory over a VectorStore and an
// Embedder. Writes are serialized; a process is assumed to be the only
// writer of its backend.
type Store struct {
	backend   VectorStore
	embedder  Embedder
	limits    map[Collection]int
	dimension int
	retry     resilience.RetryConfig
	logger    *slog.Logger
	now       func() time.Time
	onCleanup func(collection Collection, removed int)

	mu     sync.Mutex
	lastTS time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLimits overrides per-collection limits. Missing entries keep their
// default.
func WithLimits(limits map[Collection]int) Option {
	return func(s *Store) {
		for c, n := range limits {
			if n > 0 {
				s.limits[c] = n
			}
		}
	}
}

// WithDimension fixes the embedding dimension. Without it the embedder is
// probed once at construction.
func WithDimension(d int) Option {
	return func(s *Store) {
		s.dimension = d
	}
}

// WithRetry sets the retry policy of embedding calls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(s *Store) {
		s.retry = rc
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCleanupHook observes records removed by cleanup.
func WithCleanupHook(fn func(collection Collection, removed int)) Option {
	return func(s *Store) {
		s.onCleanup = fn
	}
}

// NewStore creates a Store and makes sure every collection exists.
func NewStore(ctx context.Context, backend VectorStore, embedder Embedder, opts ...Option) (*Store, error) {
	if backend == nil || embedder == nil {
		return nil, errors.New(errors.CodeConfiguration, "memory store needs a backend and an embedder", nil)
	}
	s := &Store{
		backend:  backend,
		embedder: embedder,
		limits:   DefaultLimits(),
		retry:    resilience.DefaultRetryConfig(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dimension <= 0 {
		vec, err := s.embed(ctx, "dimension probe")
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, errors.New(errors.CodeBackendUnavailable, "embedder returned an empty vector", nil)
		}
		s.dimension = len(vec)
	}

	for _, c := range Collections {
		if err := backend.EnsureCollection(ctx, string(c), s.dimension); err != nil {
			return nil, storageError("ensure collection", err).WithContext("collection", string(c))
		}
	}
	return s, nil
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int { return s.dimension }

// Limit returns the maximum number of records kept in c.
func (s *Store) Limit(c Collection) int { return s.limits[c] }

// Add writes rec. The text is embedded when rec carries no embedding.
// Adding a record whose ID already exists in its collection is a no-op.
// When the collection exceeds its limit, cleanup runs and never removes
// the record just written.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if !validCollection(rec.Collection) {
		return errors.Newf(errors.CodeInvalidInput, "unknown collection %q", rec.Collection)
	}
	if strings.TrimSpace(rec.Text) == "" {
		return errors.New(errors.CodeInvalidInput, "record text is empty", nil)
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return errors.Newf(errors.CodeInvalidInput, "confidence %v out of range", rec.Confidence)
	}
	if len(rec.Embedding) == 0 {
		vec, err := s.embed(ctx, rec.Text)
		if err != nil {
			return err
		}
		rec.Embedding = vec
	}
	if len(rec.Embedding) != s.dimension {
		return errors.Newf(errors.CodeDimensionMismatch, "embedding has dimension %d, store uses %d", len(rec.Embedding), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else {
		exists, err := s.exists(ctx, rec.Collection, rec.ID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}
	rec.Timestamp = s.stamp(rec.Timestamp)

	if err := s.backend.Upsert(ctx, string(rec.Collection), []Point{recordToPoint(rec)}); err != nil {
		return storageError("write record", err).WithContext("collection", string(rec.Collection))
	}

	if _, err := s.cleanup(ctx, rec.Collection, rec.ID); err != nil {
		s.logger.Warn("memory cleanup failed",
			slog.String("collection", string(rec.Collection)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Remember stores text in collection and returns the written record.
func (s *Store) Remember(ctx context.Context, collection Collection, text string, confidence float64, source string) (Record, error) {
	rec := Record{
		ID:         uuid.NewString(),
		Text:       text,
		Collection: collection,
		Confidence: confidence,
		Source:     source,
	}
	if err := s.Add(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Query returns up to k records of collection ordered by decreasing cosine
// similarity to text; equal scores put the newest record first.
func (s *Store) Query(ctx context.Context, text string, k int, collection Collection) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if !validCollection(collection) {
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown collection %q", collection)
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != s.dimension {
		return nil, errors.Newf(errors.CodeDimensionMismatch, "query embedding has dimension %d, store uses %d", len(vec), s.dimension)
	}
	matches, err := s.search(ctx, collection, vec, k)
	if err != nil {
		return nil, err
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// search fetches candidates until every result tying with the k-th score
// has been seen, so recency can order them. Backends return equal scores
// in arbitrary order.
func (s *Store) search(ctx context.Context, collection Collection, vec []float32, k int) ([]Match, error) {
	limit := k + k/2 + 4
	for {
		results, err := s.backend.Search(ctx, string(collection), vec, limit)
		if err != nil {
			return nil, storageError("search records", err).WithContext("collection", string(collection))
		}
		matches := make([]Match, 0, len(results))
		for _, r := range results {
			rec := pointToRecord(r.Point, collection)
			if rec.ID == "" {
				rec.ID = r.ID
			}
			matches = append(matches, Match{Record: rec, Score: float64(r.Score)})
		}
		sortMatches(matches)
		if len(results) < limit || len(matches) <= k || matches[k-1].Score != matches[len(matches)-1].Score {
			return matches, nil
		}
		limit *= 2
	}
}

// Recall queries several collections and merges the results by score.
func (s *Store) Recall(ctx context.Context, text string, k int, collections ...Collection) ([]Match, error) {
	var merged []Match
	for _, c := range collections {
		m, err := s.Query(ctx, text, k, c)
		if err != nil {
			return nil, err
		}
		merged = append(merged, m...)
	}
	sortMatches(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// Stats reports per-collection counts and approximate sizes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Backend:     backendName(s.backend),
		Dimension:   s.dimension,
		Collections: make(map[Collection]CollectionStats, len(Collections)),
	}
	for _, c := range Collections {
		points, err := s.backend.Scan(ctx, string(c))
		if err != nil {
			return Stats{}, storageError("scan collection", err).WithContext("collection", string(c))
		}
		cs := CollectionStats{Count: len(points), Limit: s.limits[c]}
		for _, p := range points {
			cs.ApproxBytes += int64(len(payloadString(p.Payload, payloadText))) + int64(4*s.dimension)
		}
		st.Collections[c] = cs
		st.Total += cs.Count
	}
	return st, nil
}

// Cleanup trims collection to its limit and returns the number of removed
// records. keepID is never removed.
func (s *Store) Cleanup(ctx context.Context, collection Collection, keepID string) (int, error) {
	if !validCollection(collection) {
		return 0, errors.Newf(errors.CodeInvalidInput, "unknown collection %q", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanup(ctx, collection, keepID)
}

// cleanup must be called with s.mu held. Conversation, tool-usage and
// preference records are evicted oldest first; facts lowest confidence
// first, then oldest.
func (s *Store) cleanup(ctx context.Context, collection Collection, keepID string) (int, error) {
	limit := s.limits[collection]
	count, err := s.backend.Count(ctx, string(collection))
	if err != nil {
		return 0, storageError("count records", err)
	}
	if limit <= 0 || count <= limit {
		return 0, nil
	}

	points, err := s.backend.Scan(ctx, string(collection))
	if err != nil {
		return 0, storageError("scan records", err)
	}
	candidates := make([]Record, 0, len(points))
	for _, p := range points {
		rec := pointToRecord(p, collection)
		if rec.ID != keepID {
			candidates = append(candidates, rec)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if collection == CollectionFact && a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})

	excess := len(points) - limit
	if excess > len(candidates) {
		excess = len(candidates)
	}
	ids := make([]string, 0, excess)
	for _, rec := range candidates[:excess] {
		ids = append(ids, rec.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.backend.Delete(ctx, string(collection), ids); err != nil {
		return 0, storageError("delete records", err)
	}
	s.logger.Debug("memory cleanup",
		slog.String("collection", string(collection)),
		slog.Int("removed", len(ids)),
	)
	if s.onCleanup != nil {
		s.onCleanup(collection, len(ids))
	}
	return len(ids), nil
}

func (s *Store) exists(ctx context.Context, collection Collection, id string) (bool, error) {
	points, err := s.backend.Scan(ctx, string(collection))
	if err != nil {
		return false, storageError("scan records", err)
	}
	for _, p := range points {
		if pointToRecord(p, collection).ID == id {
			return true, nil
		}
	}
	return false, nil
}

// stamp keeps a caller-supplied timestamp as is. A zero timestamp gets the
// current time, moved strictly after the previous write. Must be called
// with s.mu held.
func (s *Store) stamp(ts time.Time) time.Time {
	if !ts.IsZero() {
		ts = ts.UTC()
		if ts.After(s.lastTS) {
			s.lastTS = ts
		}
		return ts
	}
	ts = s.now().UTC()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = ts
	return ts
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := resilience.DoValue(ctx, s.retry, func() ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	})
	if err != nil {
		if errors.IsAgentError(err) {
			return nil, err
		}
		return nil, errors.New(errors.CodeBackendUnavailable, "embedding failed", err).WithRecoverable(true)
	}
	return vec, nil
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		if !m[i].Record.Timestamp.Equal(m[j].Record.Timestamp) {
			return m[i].Record.Timestamp.After(m[j].Record.Timestamp)
		}
		return m[i].Record.ID < m[j].Record.ID
	})
}

func validCollection(c Collection) bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

func backendName(b VectorStore) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return "custom"
}

func storageError(op string, err error) *errors.AgentError {
	if ae := errors.AsAgentError(err); errors.IsAgentError(err) && ae.Code == errors.CodeDimensionMismatch {
		return ae
	}
	return errors.New(errors.CodeStorage, op, err)
}
