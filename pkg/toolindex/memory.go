package toolindex

import (
	"context"
	"sort"
	"strings"

	sharedmath "github.com/opsconductor/decisionpipeline/pkg/shared/math"
)

// MemoryIndex is the reference/test ToolIndex implementation: a linear
// scan over an in-memory row set, scored by a blend of cosine similarity
// (when an embedding is supplied) and keyword overlap against each row's
// name/desc/tags.
type MemoryIndex struct {
	rows []IndexRow
}

// NewMemoryIndex builds a MemoryIndex over rows.
func NewMemoryIndex(rows []IndexRow) *MemoryIndex {
	return &MemoryIndex{rows: append([]IndexRow(nil), rows...)}
}

func (m *MemoryIndex) Size(ctx context.Context) (int, error) {
	return len(m.rows), nil
}

func (m *MemoryIndex) RetrieveCandidates(ctx context.Context, query string, embedding []float64, platform string, maxRows int) ([]Candidate, error) {
	queryTerms := strings.Fields(strings.ToLower(query))

	candidates := make([]Candidate, 0, len(m.rows))
	for _, row := range m.rows {
		if platform != "" && row.Platform != "" && row.Platform != platform {
			continue
		}

		keywordScore := keywordOverlap(queryTerms, row)
		score := keywordScore
		if len(embedding) > 0 && len(row.Embedding) > 0 {
			vectorScore := sharedmath.CosineSimilarity(embedding, row.Embedding)
			score = vectorScore*0.7 + keywordScore*0.3
		}

		candidates = append(candidates, Candidate{Row: row, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if maxRows >= 0 && len(candidates) > maxRows {
		candidates = candidates[:maxRows]
	}
	return candidates, nil
}

// keywordOverlap scores the fraction of query terms found in a row's
// name, description, or tags.
func keywordOverlap(queryTerms []string, row IndexRow) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	haystack := strings.ToLower(row.Name + " " + row.Desc + " " + strings.Join(row.Tags, " "))
	matched := 0
	for _, term := range queryTerms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
