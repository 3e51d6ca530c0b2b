package memory

import (
	"context"
	"math"
	"testing"

	aerrors "github.com/jllopis/autoagent/pkg/errors"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero", []float32{0, 0}, []float32{1, 1}, 0},
		{"length", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(float64(got-tc.want)) > 1e-6 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "The quick brown fox")
	b, _ := e.Embed(ctx, "the QUICK brown fox!")
	c, _ := e.Embed(ctx, "stock market report")
	if len(a) != DefaultHashDimension {
		t.Fatalf("expected default dimension, got %d", len(a))
	}
	if Cosine(a, b) < 0.999 {
		t.Fatalf("expected case and punctuation to be ignored")
	}
	if Cosine(a, c) >= Cosine(a, b) {
		t.Fatalf("expected unrelated text to be less similar")
	}
}

func TestInMemoryVectorStore(t *testing.T) {
	s := NewInMemoryVectorStore()
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, "c", 2); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.EnsureCollection(ctx, "c", 3); !aerrors.HasCode(err, aerrors.CodeDimensionMismatch) {
		t.Fatalf("expected dimension mismatch on re-create, got %v", err)
	}
	points := []Point{
		{ID: "x", Vector: []float32{1, 0}, Timestamp: 1},
		{ID: "y", Vector: []float32{0, 1}, Timestamp: 2},
	}
	if err := s.Upsert(ctx, "c", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	res, err := s.Search(ctx, "c", []float32{0.9, 0.1}, 1)
	if err != nil || len(res) != 1 || res[0].ID != "x" {
		t.Fatalf("expected x, got %+v, %v", res, err)
	}
	if err := s.Delete(ctx, "c", []string{"x"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := s.Count(ctx, "c"); n != 1 {
		t.Fatalf("expected 1 point, got %d", n)
	}
	if _, err := s.Count(ctx, "missing"); !aerrors.HasCode(err, aerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
