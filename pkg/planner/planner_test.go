package planner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

type stubClient struct {
	resp llm.Response
	err  error
}

func (s *stubClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return s.resp, s.err
}
func (s *stubClient) HealthCheck(ctx context.Context) error { return s.err }
func (s *stubClient) Model() string                         { return "stub" }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func jsonResponse(v interface{}) llm.Response {
	b, _ := json.Marshal(v)
	return llm.Response{Text: string(b)}
}

func testDecision() *records.Decision {
	return &records.Decision{
		ID:              "dec_1",
		SchemaVersion:   "v1",
		Request:         "restart nginx",
		Type:            records.DecisionTypeAction,
		Intent:          records.Intent{Category: "system", Action: "restart", Confidence: 0.9},
		Confidence:      0.9,
		ConfidenceLevel: records.ConfidenceHigh,
		RiskLevel:       records.RiskMedium,
		NextStage:       "stage_ab",
	}
}

func testSelection() *records.Selection {
	return &records.Selection{
		ID:            "sel_1",
		SchemaVersion: "v1",
		DecisionID:    "dec_1",
		SelectedTools: []records.SelectedTool{
			{ToolName: "systemctl", Justification: "restart the failing service"},
		},
		Policy: records.ExecutionPolicy{
			RiskLevel:         records.RiskMedium,
			MaxExecutionTimeS: 300,
		},
		NextStage: "stage_c",
	}
}

func TestCreatePlanEndToEnd(t *testing.T) {
	resp := jsonResponse([]map[string]interface{}{
		{
			"tool":                 "systemctl",
			"description":          "restart nginx",
			"inputs":               map[string]string{"action": "restart", "service": "nginx"},
			"estimated_duration_s": 15.0,
			"preconditions":        []string{"service exists"},
			"success_criteria":     []string{"service active"},
		},
	})

	p := New(&stubClient{resp: resp}, prompt.NewRegistry(), testLogger())
	plan, err := p.CreatePlan(context.Background(), testDecision(), testSelection(), nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, "systemctl", plan.Steps[0].Tool)
	require.Equal(t, 1, plan.Steps[0].ExecutionOrder)
	require.NotEmpty(t, plan.SafetyChecks)
	require.Equal(t, "sel_1", plan.SelectionID)
	require.NoError(t, plan.Validate())
}

func TestCreatePlanDependsOnWildcardResolvedToRealStepID(t *testing.T) {
	resp := jsonResponse([]map[string]interface{}{
		{
			"tool":                 "systemctl",
			"description":          "check service status",
			"inputs":               map[string]string{"action": "status", "service": "nginx"},
			"estimated_duration_s": 5.0,
		},
		{
			"tool":                 "systemctl",
			"description":          "restart service",
			"inputs":               map[string]string{"action": "restart", "service": "nginx"},
			"estimated_duration_s": 15.0,
			"depends_on":           []string{"step_*_systemctl"},
		},
	})

	p := New(&stubClient{resp: resp}, prompt.NewRegistry(), testLogger())
	plan, err := p.CreatePlan(context.Background(), testDecision(), testSelection(), nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, []string{plan.Steps[0].ID}, plan.Steps[1].DependsOn)
	require.NoError(t, plan.Validate())
}

func TestCreatePlanRollbackStepsWhenPolicyRequires(t *testing.T) {
	resp := jsonResponse([]map[string]interface{}{
		{
			"tool":                 "docker",
			"description":          "remove dangling container",
			"inputs":               map[string]string{"action": "remove", "container": "web"},
			"estimated_duration_s": 20.0,
		},
	})

	selection := testSelection()
	selection.SelectedTools[0].ToolName = "docker"
	selection.Policy.RiskLevel = records.RiskHigh
	selection.Policy.RequiresApproval = true
	selection.Policy.RollbackRequired = true

	p := New(&stubClient{resp: resp}, prompt.NewRegistry(), testLogger())
	plan, err := p.CreatePlan(context.Background(), testDecision(), selection, nil)
	require.NoError(t, err)
	require.True(t, plan.RollbackRequired)
	require.Len(t, plan.RollbackSteps, 1)
	require.Equal(t, "docker", plan.RollbackSteps[0].Tool)
}

func TestCreatePlanPropagatesLLMError(t *testing.T) {
	p := New(&stubClient{err: errors.New("llm backend unreachable")}, prompt.NewRegistry(), testLogger())
	_, err := p.CreatePlan(context.Background(), testDecision(), testSelection(), nil)
	require.Error(t, err)
}

func TestCreatePlanFailsWhenNoStepsGenerated(t *testing.T) {
	p := New(&stubClient{resp: jsonResponse([]map[string]interface{}{})}, prompt.NewRegistry(), testLogger())
	_, err := p.CreatePlan(context.Background(), testDecision(), testSelection(), nil)
	require.Error(t, err)
}

func TestCreatePlanDependsOnIndexResolvedToRealStepID(t *testing.T) {
	resp := jsonResponse([]map[string]interface{}{
		{
			"tool":                 "systemctl",
			"description":          "check service status",
			"inputs":               map[string]string{"action": "status", "service": "nginx"},
			"estimated_duration_s": 5.0,
		},
		{
			"tool":                 "systemctl",
			"description":          "restart service",
			"inputs":               map[string]string{"action": "restart", "service": "nginx"},
			"estimated_duration_s": 15.0,
			"depends_on":           []string{"0"},
		},
	})

	p := New(&stubClient{resp: resp}, prompt.NewRegistry(), testLogger())
	plan, err := p.CreatePlan(context.Background(), testDecision(), testSelection(), nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, plan.Steps[0].ID, plan.Steps[1].DependsOn[0])
}

func TestOptimizeReordersByParallelGroupAndMarksOptimized(t *testing.T) {
	plan := &records.Plan{
		ID:            "plan_1",
		SchemaVersion: "v1",
		SelectionID:   "sel_1",
		Steps: []records.ExecutionStep{
			{ID: "b", Tool: "ps", ParallelLevel: 1, ExecutionOrder: 5},
			{ID: "a", Tool: "ps", ParallelLevel: 0, ExecutionOrder: 9},
		},
		SafetyChecks: []records.SafetyCheck{{Description: "x", Stage: records.SafetyStageBefore, FailureAction: records.FailureActionWarn}},
		Metadata:     records.ExecutionMetadata{TotalEstimatedTimeS: 1},
	}

	optimized := Optimize(plan)
	require.Equal(t, 1, optimized.Steps[1].ExecutionOrder) // ID "a", level 0
	require.Equal(t, 2, optimized.Steps[0].ExecutionOrder) // ID "b", level 1
	require.Contains(t, optimized.Metadata.RiskFactors, "plan_optimized")
	// the original plan is untouched
	require.Equal(t, 9, plan.Steps[1].ExecutionOrder)
}

func TestHealthCheckReportsLLMHealth(t *testing.T) {
	p := New(&stubClient{}, prompt.NewRegistry(), testLogger())
	health := p.HealthCheck(context.Background())
	require.True(t, health.Healthy)
	require.True(t, health.LLMHealthy)

	p2 := New(&stubClient{err: errors.New("down")}, prompt.NewRegistry(), testLogger())
	health2 := p2.HealthCheck(context.Background())
	require.False(t, health2.Healthy)
}
