package selector

import (
	"encoding/json"

	"github.com/opsconductor/decisionpipeline/pkg/toolindex"
)

// minimalCandidate is the minimal-index shape sent to the LLM: just
// enough to choose from, never the full catalog record.
type minimalCandidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Desc     string   `json:"desc"`
	Tags     []string `json:"tags,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Cost     float64  `json:"cost"`
}

func candidatesToJSON(candidates []toolindex.Candidate) (string, error) {
	minimal := make([]minimalCandidate, 0, len(candidates))
	for _, c := range candidates {
		minimal = append(minimal, minimalCandidate{
			ID:       c.Row.ID,
			Name:     c.Row.Name,
			Desc:     c.Row.Desc,
			Tags:     c.Row.Tags,
			Platform: c.Row.Platform,
			Cost:     c.Row.Cost,
		})
	}
	out, err := json.Marshal(minimal)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
