package toolindex

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testRetrieveLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubEmbedder struct {
	healthy bool
	vec     []float64
	err     error
}

func (s stubEmbedder) Healthy(ctx context.Context) bool { return s.healthy }
func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return s.vec, s.err
}

func TestRetrieveAppliesBudget(t *testing.T) {
	idx := NewMemoryIndex(testRows())
	embedder := stubEmbedder{healthy: true, vec: []float64{1, 0, 0}}
	budget := BudgetConfig{ContextWindow: 1000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 500}

	candidates, telemetry, err := Retrieve(context.Background(), "req-1", "restart service", "", idx, embedder, budget, testRetrieveLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected budget to cap to 2 rows, got %d", len(candidates))
	}
	if telemetry.CatalogSize != 3 {
		t.Fatalf("expected catalog size 3, got %d", telemetry.CatalogSize)
	}
	if telemetry.CandidatesBeforeBudget != 3 {
		t.Fatalf("expected 3 candidates before budget, got %d", telemetry.CandidatesBeforeBudget)
	}
	if telemetry.RowsSent != 2 {
		t.Fatalf("expected 2 rows sent, got %d", telemetry.RowsSent)
	}
}

func TestRetrieveFallsBackToKeywordOnUnhealthyEmbedder(t *testing.T) {
	idx := NewMemoryIndex(testRows())
	embedder := stubEmbedder{healthy: false}
	budget := BudgetConfig{ContextWindow: 10000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 10}

	candidates, _, err := Retrieve(context.Background(), "req-2", "restart service", "linux", idx, embedder, budget, testRetrieveLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected keyword-only retrieval to still return candidates")
	}
}

func TestRetrieveFallsBackToKeywordOnEmbedError(t *testing.T) {
	idx := NewMemoryIndex(testRows())
	embedder := stubEmbedder{healthy: true, err: errors.New("embedding backend unavailable")}
	budget := BudgetConfig{ContextWindow: 10000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 10}

	candidates, _, err := Retrieve(context.Background(), "req-3", "restart service", "", idx, embedder, budget, testRetrieveLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected fallback candidates despite embed error")
	}
}

func TestRetrieveNilEmbedderSkipsEmbedding(t *testing.T) {
	idx := NewMemoryIndex(testRows())
	budget := BudgetConfig{ContextWindow: 10000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 10}

	candidates, _, err := Retrieve(context.Background(), "req-4", "disk", "", idx, nil, budget, testRetrieveLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates with nil embedder")
	}
}
