// Package orchestrator implements C8: a thin coordinator that threads
// one request through Stage A, Stage AB, and Stage C, short-circuiting
// to the downstream Answerer as soon as a stage says there is nothing
// further to do. Grounded on §4.9's pipeline diagram and on the three
// stage packages' own New/Process-style construction — no teacher
// reconcile-loop file survived the retrieval pack's trimming, so the
// coordinator generalizes the sibling stages' own orchestration
// convention (errgroup-free sequential chain, pipelineerr-wrapped
// failures, a stage-scoped logrus entry per step) rather than porting a
// distinct file.
package orchestrator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opsconductor/decisionpipeline/pkg/classifier"
	"github.com/opsconductor/decisionpipeline/pkg/metrics"
	"github.com/opsconductor/decisionpipeline/pkg/notification"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/planner"
	"github.com/opsconductor/decisionpipeline/pkg/records"
	"github.com/opsconductor/decisionpipeline/pkg/selector"
)

// Result bundles whichever records the pipeline produced before handing
// off to the downstream Answerer. Decision is always populated; Selection
// and Plan are nil when the pipeline short-circuited early.
type Result struct {
	Decision  *records.Decision
	Selection *records.Selection
	Plan      *records.Plan
}

// Health aggregates the three stages' own readiness reports.
type Health struct {
	Classifier classifier.Health
	Selector   selector.Health
	Planner    planner.Health
}

// Orchestrator threads one request through Stage A, AB, and C.
type Orchestrator struct {
	classifier *classifier.Classifier
	selector   *selector.Selector
	planner    *planner.Planner
	notifier   *notification.Notifier
	log        *logrus.Logger
}

// New builds an Orchestrator. notifier may be nil (or built with
// notification.New("", ...)) to disable the approval-alert hook.
func New(c *classifier.Classifier, s *selector.Selector, p *planner.Planner, notifier *notification.Notifier, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{classifier: c, selector: s, planner: p, notifier: notifier, log: log}
}

// Process runs §4.9's chain for one request:
//
//	A.Classify → if next_stage=stage_d return
//	           → AB.Process → if empty selection return
//	                       → C.CreatePlan → return
//
// Every transition first checks ctx for a blown deadline or cancellation,
// surfacing a Cancelled pipelineerr rather than entering the next stage
// pointlessly. No stage is retried automatically; a stage's own error is
// returned verbatim to the caller.
func (o *Orchestrator) Process(ctx context.Context, request string, reqContext map[string]interface{}) (*Result, error) {
	metrics.IncrementInFlight()
	defer metrics.DecrementInFlight()

	decision, err := o.runClassify(ctx, request, reqContext)
	if err != nil {
		return nil, err
	}
	result := &Result{Decision: decision}

	if decision.RiskLevel == records.RiskCritical {
		o.notifier.NotifyApprovalRequired(ctx, "stage_a", decision.ID, string(decision.RiskLevel), decision.Request)
	}
	if decision.NextStage == "stage_d" {
		return result, nil
	}

	if err := checkDeadline(ctx, "stage_ab"); err != nil {
		return nil, err
	}
	selection, err := o.runSelect(ctx, decision.ID, request, reqContext)
	if err != nil {
		return nil, err
	}
	result.Selection = selection

	if selection.NextStage == "stage_d" || len(selection.SelectedTools) == 0 {
		return result, nil
	}

	if err := checkDeadline(ctx, "stage_c"); err != nil {
		return nil, err
	}
	plan, err := o.runPlan(ctx, decision, selection, sopSnippets(reqContext))
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	if selection.Policy.RiskLevel == records.RiskCritical && selection.Policy.RequiresApproval {
		o.notifier.NotifyApprovalRequired(ctx, "stage_c", plan.ID, string(selection.Policy.RiskLevel), decision.Request)
	}

	return result, nil
}

func (o *Orchestrator) runClassify(ctx context.Context, request string, reqContext map[string]interface{}) (*records.Decision, error) {
	timer := metrics.NewTimer()
	decision, err := o.classifier.Classify(ctx, request, reqContext)
	timer.RecordStage("stage_a")
	if err != nil {
		metrics.RecordStageError("stage_a", string(pipelineerr.KindOf(err)))
		return nil, err
	}
	metrics.RecordDecision()
	return decision, nil
}

func (o *Orchestrator) runSelect(ctx context.Context, decisionID, request string, reqContext map[string]interface{}) (*records.Selection, error) {
	timer := metrics.NewTimer()
	selection, err := o.selector.Process(ctx, decisionID, request, reqContext)
	timer.RecordStage("stage_ab")
	if err != nil {
		metrics.RecordStageError("stage_ab", string(pipelineerr.KindOf(err)))
		return nil, err
	}
	metrics.RecordSelection()
	return selection, nil
}

func (o *Orchestrator) runPlan(ctx context.Context, decision *records.Decision, selection *records.Selection, sopSnippets []string) (*records.Plan, error) {
	timer := metrics.NewTimer()
	plan, err := o.planner.CreatePlan(ctx, decision, selection, sopSnippets)
	timer.RecordStage("stage_c")
	if err != nil {
		metrics.RecordStageError("stage_c", string(pipelineerr.KindOf(err)))
		return nil, err
	}
	metrics.RecordPlan()
	return plan, nil
}

// checkDeadline returns a Cancelled pipelineerr if ctx has already been
// cancelled or its deadline has elapsed, naming the stage about to be
// skipped.
func checkDeadline(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		metrics.RecordStageError(stage, string(pipelineerr.Cancelled))
		return pipelineerr.Wrap(pipelineerr.Cancelled, stage, "request deadline elapsed before stage could run", err)
	}
	return nil
}

// sopSnippets extracts any standard-operating-procedure text the caller
// attached to the request context for Stage C's planning prompt.
func sopSnippets(reqContext map[string]interface{}) []string {
	if reqContext == nil {
		return nil
	}
	raw, ok := reqContext["sop_snippets"].([]string)
	if !ok {
		return nil
	}
	return raw
}

// HealthCheck aggregates all three stages' readiness.
func (o *Orchestrator) HealthCheck(ctx context.Context) Health {
	return Health{
		Classifier: o.classifier.HealthCheck(ctx),
		Selector:   o.selector.HealthCheck(ctx),
		Planner:    o.planner.HealthCheck(ctx),
	}
}
