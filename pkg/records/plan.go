package records

import (
	"fmt"
	"time"
)

// SafetyStage is when a safety check runs relative to its step.
type SafetyStage string

const (
	SafetyStageBefore SafetyStage = "before"
	SafetyStageDuring SafetyStage = "during"
	SafetyStageAfter  SafetyStage = "after"
)

// FailureAction is what happens when a safety check fails.
type FailureAction string

const (
	FailureActionAbort    FailureAction = "abort"
	FailureActionWarn     FailureAction = "warn"
	FailureActionRollback FailureAction = "rollback"
)

// ExecutionStep is one node in the plan's dependency DAG.
type ExecutionStep struct {
	ID                string                 `json:"id" validate:"required"`
	Description       string                 `json:"description"`
	Tool              string                 `json:"tool" validate:"required"`
	Inputs            map[string]string      `json:"inputs,omitempty"`
	Preconditions     []string               `json:"preconditions,omitempty"`
	SuccessCriteria   []string               `json:"success_criteria,omitempty"`
	FailureHandling   string                 `json:"failure_handling,omitempty"`
	EstimatedDuration time.Duration          `json:"estimated_duration"`
	DependsOn         []string               `json:"depends_on,omitempty"`
	ExecutionOrder    int                    `json:"execution_order"`
	ParallelLevel     int                    `json:"parallel_level"`
	RequiresCredentials bool                 `json:"requires_credentials"`
	ExecutionLocation string                 `json:"execution_location,omitempty"`
	ToolMetadata      map[string]interface{} `json:"tool_metadata,omitempty"`
}

// SafetyCheck is a guard associated with one or more steps.
type SafetyCheck struct {
	Description   string        `json:"description" validate:"required"`
	Stage         SafetyStage   `json:"stage" validate:"required"`
	FailureAction FailureAction `json:"failure_action" validate:"required"`
	AppliesTo     []string      `json:"applies_to,omitempty"` // step IDs; empty means plan-wide
}

// RollbackStep undoes one forward step's effects.
type RollbackStep struct {
	ForStepID   string            `json:"for_step_id" validate:"required"`
	Tool        string            `json:"tool" validate:"required"`
	Description string            `json:"description"`
	Inputs      map[string]string `json:"inputs,omitempty"`
}

// ObservabilityConfig names what to watch while the plan executes.
type ObservabilityConfig struct {
	Metrics []string `json:"metrics,omitempty"`
	Logs    []string `json:"logs,omitempty"`
	Alerts  []string `json:"alerts,omitempty"`
}

// ExecutionMetadata summarizes the plan's overall shape for a reviewer.
type ExecutionMetadata struct {
	TotalEstimatedTimeS float64  `json:"total_estimated_time_s"`
	RiskFactors         []string `json:"risk_factors,omitempty"`
	ApprovalPoints      []string `json:"approval_points,omitempty"`
	CheckpointSteps     []string `json:"checkpoint_steps,omitempty"`
}

// Plan is Stage C's output record.
type Plan struct {
	ID              string              `json:"id" validate:"required"`
	SchemaVersion   string              `json:"schema_version" validate:"required"`
	SelectionID     string              `json:"selection_id" validate:"required"`
	Steps           []ExecutionStep     `json:"steps" validate:"required,min=1"`
	SafetyChecks    []SafetyCheck       `json:"safety_checks" validate:"required,min=1"`
	RollbackSteps   []RollbackStep      `json:"rollback_steps,omitempty"`
	Observability   ObservabilityConfig `json:"observability"`
	Metadata        ExecutionMetadata   `json:"metadata"`
	RollbackRequired bool               `json:"rollback_required"`
	CreatedAt       time.Time           `json:"created_at"`
}

// NewPlanID generates a plan id of the form plan_<YYYYMMDD_HHMMSS>_<uuid8>.
func NewPlanID(now time.Time) string {
	return fmt.Sprintf("plan_%s_%s", now.UTC().Format("20060102_150405"), shortUUID())
}

// NewStepID generates a step id of the form step_<hex8>_<tool>[_<suffix>],
// matching the original's _generate_step_id.
func NewStepID(tool string, suffix string) string {
	id := fmt.Sprintf("step_%s_%s", shortUUID(), tool)
	if suffix != "" {
		id += "_" + suffix
	}
	return id
}

// Validate checks Plan's struct-tag constraints plus the cross-cutting
// invariants: every depends_on reference resolves to a step in the plan,
// at least one safety check exists, rollback steps are present whenever
// rollback_required is true, and total_estimated_time_s equals the sum
// of the steps' own durations.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}

	stepIDs := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		stepIDs[s.ID] = struct{}{}
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := stepIDs[dep]; !ok {
				return fmt.Errorf("step %q depends on unresolved step %q", s.ID, dep)
			}
		}
	}

	if p.RollbackRequired && len(p.RollbackSteps) == 0 {
		return fmt.Errorf("rollback_required is true but no rollback_steps were generated")
	}

	var total time.Duration
	for _, s := range p.Steps {
		total += s.EstimatedDuration
	}
	if got, want := p.Metadata.TotalEstimatedTimeS, total.Seconds(); got != want {
		return fmt.Errorf("metadata.total_estimated_time_s (%.1f) does not equal sum of step durations (%.1f)", got, want)
	}
	if p.Metadata.TotalEstimatedTimeS <= 0 {
		return fmt.Errorf("metadata.total_estimated_time_s must be positive")
	}

	return nil
}

// DeepCopy returns an independent copy of p.
func (p *Plan) DeepCopy() *Plan {
	cp := *p
	cp.Steps = append([]ExecutionStep(nil), p.Steps...)
	cp.SafetyChecks = append([]SafetyCheck(nil), p.SafetyChecks...)
	cp.RollbackSteps = append([]RollbackStep(nil), p.RollbackSteps...)
	cp.Metadata.RiskFactors = append([]string(nil), p.Metadata.RiskFactors...)
	cp.Metadata.ApprovalPoints = append([]string(nil), p.Metadata.ApprovalPoints...)
	cp.Metadata.CheckpointSteps = append([]string(nil), p.Metadata.CheckpointSteps...)
	return &cp
}
