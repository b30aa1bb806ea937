package toolindex

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrieve implements §4.6's numbered retrieval algorithm: embed the
// query when the embedder is healthy (falling back to keyword-only
// scoring otherwise), query the index with a platform filter, trim the
// result to the token budget, and emit telemetry describing what was
// sent versus what was available.
func Retrieve(ctx context.Context, requestID, query, platform string, index ToolIndex, embedder EmbeddingService, budget BudgetConfig, log *logrus.Logger) ([]Candidate, Telemetry, error) {
	start := time.Now()

	catalogSize, err := index.Size(ctx)
	if err != nil {
		return nil, Telemetry{}, err
	}

	var embedding []float64
	if embedder != nil && embedder.Healthy(ctx) {
		embedding, err = embedder.Embed(ctx, query)
		if err != nil {
			log.WithFields(logrus.Fields{"component": "toolindex", "request_id": requestID, "error": err}).Warn("embedding failed, falling back to keyword-only retrieval")
			embedding = nil
		}
	}

	maxRows := budget.MaxRows()

	candidates, err := index.RetrieveCandidates(ctx, query, embedding, platform, -1)
	if err != nil {
		return nil, Telemetry{}, err
	}
	beforeBudget := len(candidates)

	if maxRows >= 0 && len(candidates) > maxRows {
		candidates = candidates[:maxRows]
	}

	telemetry := Telemetry{
		RequestID:              requestID,
		CatalogSize:            catalogSize,
		CandidatesBeforeBudget: beforeBudget,
		RowsSent:               len(candidates),
		BudgetUsed:             len(candidates) * budget.TokensPerRow,
		HeadroomLeft:           (maxRows - len(candidates)) * budget.TokensPerRow,
		RetrievalMS:            time.Since(start).Milliseconds(),
	}
	log.WithFields(logrus.Fields{
		"component":   "toolindex",
		"request_id":  requestID,
		"catalog_size": telemetry.CatalogSize,
		"rows_sent":   telemetry.RowsSent,
		"retrieval_ms": telemetry.RetrievalMS,
	}).Debug("tool retrieval complete")

	return candidates, telemetry, nil
}
