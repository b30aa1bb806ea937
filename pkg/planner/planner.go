// Package planner implements Stage C: turning a Decision and a Selection
// into an executable, dependency-ordered Plan. Step generation is an LLM
// call with no rule-based fallback — when the LLM is unavailable or its
// output won't parse, planning fails rather than degrading to a
// templated plan. Grounded on
// original_source/pipeline/stages/stage_c/planner.py's StageCPlanner
// (dependency_resolver.py, safety_planner.py, resource_planner.py feed
// the supporting algorithm files in this package).
package planner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

const stageName = "stage_c"

// Health reports Stage C's readiness, mirroring get_health_status.
type Health struct {
	Stage        string
	Healthy      bool
	LLMHealthy   bool
	PlansCreated int64
	ErrorsSeen   int64
	LLMCallsMade int64
}

// Planner implements Stage C.
type Planner struct {
	client  llm.Client
	prompts *prompt.Registry
	log     *logrus.Logger

	stats stats
}

// New builds a Planner.
func New(client llm.Client, prompts *prompt.Registry, log *logrus.Logger) *Planner {
	return &Planner{client: client, prompts: prompts, log: log}
}

// CreatePlan implements §4.8's algorithm end-to-end: LLM step generation,
// dependency resolution, safety planning, resource/observability
// planning, and final validation.
func (p *Planner) CreatePlan(ctx context.Context, decision *records.Decision, selection *records.Selection, sopSnippets []string) (*records.Plan, error) {
	start := time.Now()
	p.stats.incPlans()

	steps, llmMS, err := p.generateSteps(ctx, decision, selection, sopSnippets)
	if err != nil {
		p.stats.incErrors()
		return nil, err
	}
	if len(steps) == 0 {
		p.stats.incErrors()
		return nil, pipelineerr.New(pipelineerr.ValidationError, stageName, "no execution steps could be generated from the provided selection")
	}

	ordered, err := resolveDependencies(steps)
	if err != nil {
		p.stats.incErrors()
		return nil, pipelineerr.Wrap(pipelineerr.DependencyError, stageName, "resolving step dependencies", err)
	}

	safetyChecks := createSafetyPlan(ordered, decision, selection)
	rollbackSteps := createRollbackSteps(ordered, selection)
	observability := createObservabilityConfig(ordered, decision, selection)
	metadata := createExecutionMetadata(ordered, decision, selection)

	plan := &records.Plan{
		ID:               records.NewPlanID(time.Now()),
		SchemaVersion:    "v1",
		SelectionID:      selection.ID,
		Steps:            ordered,
		SafetyChecks:     safetyChecks,
		RollbackSteps:    rollbackSteps,
		Observability:    observability,
		Metadata:         metadata,
		RollbackRequired: selection.Policy.RollbackRequired,
		CreatedAt:        time.Now(),
	}

	if err := plan.Validate(); err != nil {
		p.stats.incErrors()
		return nil, pipelineerr.Wrap(pipelineerr.ValidationError, stageName, "assembled plan failed validation", err)
	}

	p.log.WithFields(logrus.Fields{
		"component":  "planner",
		"plan_id":    plan.ID,
		"llm_ms":     llmMS,
		"total_ms":   time.Since(start).Milliseconds(),
		"step_count": len(ordered),
	}).Debug("stage C plan complete")

	return plan, nil
}

// Validate checks a plan for completeness and safety, per §4.8.5. It
// delegates to Plan's own struct-tag and cross-field invariant checks;
// exposed as a package-level operation for symmetry with Optimize.
func Validate(plan *records.Plan) error {
	return plan.Validate()
}

// Optimize re-derives execution_order from parallel groups, so identical
// plans produced under load settle on the same step ordering, and
// records that it did so. Mirrors optimize_plan.
func Optimize(plan *records.Plan) *records.Plan {
	optimized := plan.DeepCopy()

	groups := parallelGroups(optimized.Steps)
	order := 1
	byID := make(map[string]int, len(optimized.Steps))
	for i, s := range optimized.Steps {
		byID[s.ID] = i
	}
	for _, group := range groups {
		for _, step := range group {
			optimized.Steps[byID[step.ID]].ExecutionOrder = order
		}
		order++
	}

	optimized.Metadata.RiskFactors = append(optimized.Metadata.RiskFactors, "plan_optimized")
	return optimized
}

// HealthCheck reports Stage C's readiness.
func (p *Planner) HealthCheck(ctx context.Context) Health {
	llmErr := p.client.HealthCheck(ctx)
	snap := p.stats.snapshot()
	return Health{
		Stage:        stageName,
		Healthy:      llmErr == nil,
		LLMHealthy:   llmErr == nil,
		PlansCreated: snap.plansCreated,
		ErrorsSeen:   snap.errors,
		LLMCallsMade: snap.llmCalls,
	}
}

