// Package toolindex implements the C5 tool index + embedder: retrieval of
// a token-budgeted candidate tool list for a free-text query, blending
// vector similarity with keyword matching and applying a platform filter
// before scoring. Grounded on original_source/stage_b (which precedes
// the selector's own LLM call with exactly this narrowing step) and on
// windows_tools_registry.py / load_windows_tools.py for the Platform
// dimension the catalog carries per tool.
package toolindex

import (
	"context"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// ToolCatalog is the authoritative store of full tool specifications.
type ToolCatalog interface {
	// Lookup returns the full Tool record for id, or ok=false if unknown.
	Lookup(ctx context.Context, id string) (records.Tool, bool, error)
}

// IndexRow is ToolIndex's denormalized, minimal projection of a tool,
// carrying just enough to search and budget over without paging in the
// full catalog record.
type IndexRow struct {
	ID        string
	Name      string
	Desc      string
	Tags      []string
	Platform  string
	Cost      float64
	Embedding []float64
}

// Candidate is one retrieval result: a row plus its blended score.
type Candidate struct {
	Row   IndexRow
	Score float64
}

// ToolIndex is the denormalized, searchable projection of the catalog.
type ToolIndex interface {
	// RetrieveCandidates returns rows matching query (optionally combined
	// with a precomputed embedding), filtered to platform when non-empty,
	// ordered by descending blended score, capped at maxRows. Platform
	// filtering must happen before scoring, not after, to preserve
	// candidate quality under strict token budgets.
	RetrieveCandidates(ctx context.Context, query string, embedding []float64, platform string, maxRows int) ([]Candidate, error)

	// Size reports the total number of rows in the index, for telemetry.
	Size(ctx context.Context) (int, error)
}

// EmbeddingService turns free text into a fixed-width vector for
// vector-similarity search.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Healthy(ctx context.Context) bool
}

// Telemetry is the per-request retrieval record emitted by Retrieve,
// per §4.6's "emit telemetry" requirement.
type Telemetry struct {
	RequestID              string
	CatalogSize            int
	CandidatesBeforeBudget int
	RowsSent               int
	BudgetUsed             int
	HeadroomLeft           int
	RetrievalMS            int64
}
