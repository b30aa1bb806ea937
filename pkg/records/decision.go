// Package records defines the pipeline's three wire/orchestration
// contracts — Decision, Selection, and Plan — as immutable, versioned Go
// structs. Each mirrors one of the original system's pydantic schemas
// (decision_v1.py, selection_v1.py, plan_v1.py) field-for-field, with
// validation reshaped onto go-playground/validator struct tags plus
// hand-written cross-field invariant checks.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// DecisionType classifies whether a request needs action or is purely
// informational.
type DecisionType string

const (
	DecisionTypeAction DecisionType = "action"
	DecisionTypeInfo   DecisionType = "info"
)

// ConfidenceLevel buckets a numeric confidence score for display and
// routing. High is confidence >= 0.8, Medium is [0.5, 0.8), Low is < 0.5.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceLevelFor buckets a raw score into its ConfidenceLevel.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RiskLevel is the closed risk taxonomy shared by all three records.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Entity is a single extracted entity with its type, surface value, and
// extraction confidence.
type Entity struct {
	Type       string  `json:"type" validate:"required"`
	Value      string  `json:"value" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// key returns the dedup key for an entity: type plus a case-folded value,
// per §3's "entity dedup by (type, lowercased value)" invariant.
func (e Entity) key() string {
	return e.Type + "|" + strings.ToLower(e.Value)
}

// Intent is the classified category/action pair for a request.
type Intent struct {
	Category     string   `json:"category" validate:"required"`
	Action       string   `json:"action" validate:"required"`
	Confidence   float64  `json:"confidence" validate:"gte=0,lte=1"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Decision is Stage A's output record: a classified intent, extracted
// entities, an overall confidence/risk assessment, and routing to the
// next stage.
type Decision struct {
	ID               string                 `json:"id" validate:"required"`
	SchemaVersion    string                 `json:"schema_version" validate:"required"`
	Request          string                 `json:"request" validate:"required"`
	Type             DecisionType           `json:"type" validate:"required,oneof=action info"`
	Intent           Intent                 `json:"intent" validate:"required"`
	Entities         []Entity               `json:"entities"`
	Confidence       float64                `json:"confidence" validate:"gte=0,lte=1"`
	ConfidenceLevel  ConfidenceLevel        `json:"confidence_level" validate:"required"`
	RiskLevel        RiskLevel              `json:"risk_level" validate:"required"`
	Context          map[string]interface{} `json:"context,omitempty"`
	RequiresApproval bool                   `json:"requires_approval"`
	NextStage        string                 `json:"next_stage" validate:"required"`
	CreatedAt        time.Time              `json:"created_at"`
}

// RequiresApprovalFor computes §3's approval invariant: true whenever
// riskLevel is high or critical, or confidenceLevel is low and
// decisionType is action.
func RequiresApprovalFor(riskLevel RiskLevel, confidenceLevel ConfidenceLevel, decisionType DecisionType) bool {
	if riskLevel == RiskHigh || riskLevel == RiskCritical {
		return true
	}
	return confidenceLevel == ConfidenceLow && decisionType == DecisionTypeAction
}

// NewDecisionID generates a decision id of the form
// dec_<YYYYMMDD_HHMMSS>_<uuid8>, matching the original's _generate_decision_id.
func NewDecisionID(now time.Time) string {
	return fmt.Sprintf("dec_%s_%s", now.UTC().Format("20060102_150405"), shortUUID())
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// DedupEntities removes duplicate entities by (type, lowercased value),
// keeping the higher-confidence occurrence on a tie preferring the first
// seen, per §3's entity dedup invariant. The result is stable-sorted by
// (type, value) for deterministic output.
func DedupEntities(entities []Entity) []Entity {
	best := make(map[string]Entity, len(entities))
	order := make([]string, 0, len(entities))

	for _, e := range entities {
		k := e.key()
		existing, ok := best[k]
		if !ok {
			best[k] = e
			order = append(order, k)
			continue
		}
		if e.Confidence > existing.Confidence {
			best[k] = e
		}
	}

	out := make([]Entity, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// Validate checks Decision's struct-tag constraints plus the cross-field
// invariants validator tags can't express: confidence/confidence_level
// consistency, the requires_approval invariant, and entity dedup.
func (d *Decision) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if want := ConfidenceLevelFor(d.Confidence); d.ConfidenceLevel != want {
		return fmt.Errorf("confidence_level %q inconsistent with confidence %.3f (want %q)",
			d.ConfidenceLevel, d.Confidence, want)
	}
	if want := RequiresApprovalFor(d.RiskLevel, d.ConfidenceLevel, d.Type); d.RequiresApproval != want {
		return fmt.Errorf("requires_approval %v inconsistent with risk_level=%q confidence_level=%q type=%q (want %v)",
			d.RequiresApproval, d.RiskLevel, d.ConfidenceLevel, d.Type, want)
	}
	seen := make(map[string]struct{}, len(d.Entities))
	for _, e := range d.Entities {
		k := e.key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate entity (type=%s, value=%s) violates dedup invariant", e.Type, e.Value)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// DeepCopy returns an independent copy of d, safe to hand to a goroutine
// that outlives the caller's own reference.
func (d *Decision) DeepCopy() *Decision {
	cp := *d
	cp.Entities = append([]Entity(nil), d.Entities...)
	cp.Intent.Capabilities = append([]string(nil), d.Intent.Capabilities...)
	if d.Context != nil {
		cp.Context = make(map[string]interface{}, len(d.Context))
		for k, v := range d.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}
