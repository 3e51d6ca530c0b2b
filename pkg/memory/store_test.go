package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	aerrors "github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/resilience"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *InMemoryVectorStore) {
	t.Helper()
	backend := NewInMemoryVectorStore()
	opts = append([]Option{WithDimension(64)}, opts...)
	s, err := NewStore(context.Background(), backend, NewHashEmbedder(64), opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, backend
}

func TestAddQueryRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	texts := []string{
		"Paris is the capital of France",
		"Go channels synchronize goroutines",
		"The weather tomorrow will be sunny",
	}
	var ids []string
	for _, text := range texts {
		rec, err := s.Remember(ctx, CollectionFact, text, 0.8, "test")
		if err != nil {
			t.Fatalf("remember: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	for i, text := range texts {
		matches, err := s.Query(ctx, text, 1, CollectionFact)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(matches) != 1 || matches[0].Record.ID != ids[i] {
			t.Fatalf("expected %s as top match for %q, got %+v", ids[i], text, matches)
		}
		if matches[0].Record.Text != text || matches[0].Record.Source != "test" || matches[0].Record.Confidence != 0.8 {
			t.Fatalf("record not preserved: %+v", matches[0].Record)
		}
	}
}

func TestQueryTiesNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Add(ctx, Record{ID: "old", Text: "same words", Collection: CollectionConversation, Timestamp: base}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, Record{ID: "new", Text: "same words", Collection: CollectionConversation, Timestamp: base.Add(time.Hour)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	matches, err := s.Query(ctx, "same words", 2, CollectionConversation)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 || matches[0].Record.ID != "new" || matches[1].Record.ID != "old" {
		t.Fatalf("expected newest first, got %+v", matches)
	}
}

func TestFIFOCleanup(t *testing.T) {
	removed := 0
	s, backend := newTestStore(t,
		WithLimits(map[Collection]int{CollectionConversation: 3}),
		WithCleanupHook(func(_ Collection, n int) { removed += n }),
	)
	ctx := context.Background()
	ids := []string{"r1", "r2", "r3", "r4"}
	for _, id := range ids {
		if err := s.Add(ctx, Record{ID: id, Text: "turn " + id, Collection: CollectionConversation}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	count, _ := backend.Count(ctx, string(CollectionConversation))
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
	points, _ := backend.Scan(ctx, string(CollectionConversation))
	present := map[string]bool{}
	for _, p := range points {
		present[p.ID] = true
	}
	if present["r1"] || !present["r4"] {
		t.Fatalf("expected oldest removed and newest kept, got %v", present)
	}
	if removed != 1 {
		t.Fatalf("expected cleanup hook to report 1 removal, got %d", removed)
	}
}

func TestFactCleanupLowestConfidenceFirst(t *testing.T) {
	s, backend := newTestStore(t, WithLimits(map[Collection]int{CollectionFact: 2}))
	ctx := context.Background()
	facts := []Record{
		{ID: "strong", Text: "water boils at 100 degrees", Confidence: 0.9},
		{ID: "weak", Text: "the moon is cheese", Confidence: 0.5},
		{ID: "newest", Text: "go is a language", Confidence: 0.9},
	}
	for _, f := range facts {
		f.Collection = CollectionFact
		if err := s.Add(ctx, f); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	points, _ := backend.Scan(ctx, string(CollectionFact))
	if len(points) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(points))
	}
	for _, p := range points {
		if p.ID == "weak" {
			t.Fatalf("expected lowest confidence fact to be removed")
		}
	}
}

func TestCleanupNeverRemovesNewRecord(t *testing.T) {
	s, backend := newTestStore(t, WithLimits(map[Collection]int{CollectionFact: 1}))
	ctx := context.Background()
	if err := s.Add(ctx, Record{ID: "old", Text: "a confident fact", Collection: CollectionFact, Confidence: 0.95}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, Record{ID: "fresh", Text: "a doubtful fact", Collection: CollectionFact, Confidence: 0.1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	points, _ := backend.Scan(ctx, string(CollectionFact))
	if len(points) != 1 || points[0].ID != "fresh" {
		t.Fatalf("expected only the new record, got %+v", points)
	}
}

func TestAddIdempotent(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	rec := Record{ID: "dup", Text: "first text", Collection: CollectionPreference}
	if err := s.Add(ctx, rec); err != nil {
		t.Fatalf("add: %v", err)
	}
	rec.Text = "second text"
	if err := s.Add(ctx, rec); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	points, _ := backend.Scan(ctx, string(CollectionPreference))
	if len(points) != 1 {
		t.Fatalf("expected 1 record, got %d", len(points))
	}
	if got := payloadString(points[0].Payload, payloadText); got != "first text" {
		t.Fatalf("expected original text to be kept, got %q", got)
	}
}

func TestAddRejects(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	tests := []struct {
		name string
		rec  Record
		code aerrors.ErrorCode
	}{
		{"dimension", Record{Text: "x", Collection: CollectionFact, Embedding: make([]float32, 3)}, aerrors.CodeDimensionMismatch},
		{"collection", Record{Text: "x", Collection: "notes"}, aerrors.CodeInvalidInput},
		{"empty", Record{Text: "  ", Collection: CollectionFact}, aerrors.CodeInvalidInput},
		{"confidence", Record{Text: "x", Collection: CollectionFact, Confidence: 1.5}, aerrors.CodeInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Add(ctx, tc.rec); !aerrors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func TestEmbedderFailures(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, NewInMemoryVectorStore(), failingEmbedder{},
		WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(1)))
	if !aerrors.HasCode(err, aerrors.CodeBackendUnavailable) {
		t.Fatalf("expected backend unavailable on probe, got %v", err)
	}

	s, err := NewStore(ctx, NewInMemoryVectorStore(), fixedEmbedder{dim: 8}, WithDimension(16))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Query(ctx, "anything", 1, CollectionFact); !aerrors.HasCode(err, aerrors.CodeDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestDimensionProbe(t *testing.T) {
	s, err := NewStore(context.Background(), NewInMemoryVectorStore(), NewHashEmbedder(32))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.Dimension() != 32 {
		t.Fatalf("expected probed dimension 32, got %d", s.Dimension())
	}
}

func TestStatsAndRecall(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Remember(ctx, CollectionConversation, "User: hello\nAgent: hi", 0, "interaction"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if _, err := s.Remember(ctx, CollectionFact, "hello means greeting", 0.8, "interaction"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.Backend != "inmemory" || st.Dimension != 64 {
		t.Fatalf("unexpected stats %+v", st)
	}
	conv := st.Collections[CollectionConversation]
	if conv.Count != 1 || conv.Limit != 1000 || conv.ApproxBytes != int64(len("User: hello\nAgent: hi")+4*64) {
		t.Fatalf("unexpected conversation stats %+v", conv)
	}

	matches, err := s.Recall(ctx, "hello", 3, CollectionConversation, CollectionFact)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected matches from both collections, got %d", len(matches))
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("expected matches ordered by score")
	}
}

func TestSuppliedTimestampIsKept(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := s.Remember(ctx, CollectionConversation, "an automatic turn", 0, "test")
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	supplied := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Add(ctx, Record{ID: "imported", Text: "an imported turn", Collection: CollectionConversation, Timestamp: supplied}); err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.Remember(ctx, CollectionConversation, "another automatic turn", 0, "test")
	if err != nil {
		t.Fatalf("remember: %v", err)
	}

	got := map[string]time.Time{}
	for _, text := range []string{"an automatic turn", "an imported turn", "another automatic turn"} {
		matches, err := s.Query(ctx, text, 1, CollectionConversation)
		if err != nil || len(matches) != 1 {
			t.Fatalf("query %q: %+v, %v", text, matches, err)
		}
		got[matches[0].Record.ID] = matches[0].Record.Timestamp
	}
	if !got["imported"].Equal(supplied) {
		t.Fatalf("expected supplied timestamp %v, got %v", supplied, got["imported"])
	}
	if !got[second.ID].After(got[first.ID]) {
		t.Fatalf("expected automatic timestamps to increase, got %v then %v", got[first.ID], got[second.ID])
	}
}
