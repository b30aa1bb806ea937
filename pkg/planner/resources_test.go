package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

func TestCalculateResourceRequirementsSumsDistinctTools(t *testing.T) {
	steps := []records.ExecutionStep{
		{ID: "a", Tool: "systemctl", ParallelLevel: 0},
		{ID: "b", Tool: "docker", ParallelLevel: 0},
		{ID: "c", Tool: "docker", ParallelLevel: 1},
	}
	req := CalculateResourceRequirements(steps)
	require.InDelta(t, 0.6, req.CPUCores, 0.0001) // systemctl 0.1 + docker 0.5, counted once per distinct tool
	require.Equal(t, 110, req.MemoryMB)
	require.True(t, req.NetworkRequired)
}

func TestPeakAtParallelLevelTakesBusiestLevel(t *testing.T) {
	steps := []records.ExecutionStep{
		{ID: "a", Tool: "docker", ParallelLevel: 0},
		{ID: "b", Tool: "docker", ParallelLevel: 1},
		{ID: "c", Tool: "systemctl", ParallelLevel: 1},
	}
	cpu, mem := peakAtParallelLevel(steps)
	require.InDelta(t, 0.6, cpu, 0.0001)
	require.Equal(t, 110, mem)
}

func TestCreateObservabilityConfigAddsRiskAndProductionExtras(t *testing.T) {
	steps := []records.ExecutionStep{{ID: "a", Tool: "systemctl", Inputs: map[string]string{"service": "nginx"}}}
	decision := &records.Decision{RiskLevel: records.RiskCritical}
	sel := &records.Selection{Policy: records.ExecutionPolicy{ProductionEnvironment: true}}

	cfg := createObservabilityConfig(steps, decision, sel)
	require.Contains(t, cfg.Metrics, "service_nginx_status")
	require.Contains(t, cfg.Metrics, "system_load_average")
	require.Contains(t, cfg.Metrics, "service_availability_percent")
	require.Contains(t, cfg.Alerts, "service_down")
}

func TestToolObservabilityUnknownToolReturnsNil(t *testing.T) {
	m, l, a := toolObservability(records.ExecutionStep{Tool: "mystery"})
	require.Nil(t, m)
	require.Nil(t, l)
	require.Nil(t, a)
}

func TestCreateExecutionMetadataTotalsMatchStepDurations(t *testing.T) {
	steps := []records.ExecutionStep{
		{ID: "a", Tool: "ps", EstimatedDuration: 10 * time.Second},
		{ID: "b", Tool: "systemctl", Inputs: map[string]string{"action": "restart"}, EstimatedDuration: 90 * time.Second},
	}
	decision := &records.Decision{RiskLevel: records.RiskHigh}
	sel := &records.Selection{Policy: records.ExecutionPolicy{RequiresApproval: true}}

	meta := createExecutionMetadata(steps, decision, sel)
	require.Equal(t, 100.0, meta.TotalEstimatedTimeS)
	require.Contains(t, meta.RiskFactors, "risk_level_high")
	require.Contains(t, meta.RiskFactors, "uses_destructive_tool_systemctl")
	require.Contains(t, meta.ApprovalPoints, "b")
	require.NotContains(t, meta.ApprovalPoints, "a")
	require.Contains(t, meta.CheckpointSteps, "b") // destructive, over 60s, and the last step
	require.NotContains(t, meta.CheckpointSteps, "a")
}

func TestCreateExecutionMetadataCriticalRiskApprovesAllSteps(t *testing.T) {
	steps := []records.ExecutionStep{
		{ID: "a", Tool: "ps", EstimatedDuration: 5 * time.Second},
	}
	decision := &records.Decision{RiskLevel: records.RiskCritical}
	sel := &records.Selection{Policy: records.ExecutionPolicy{}}

	meta := createExecutionMetadata(steps, decision, sel)
	require.Contains(t, meta.ApprovalPoints, "a")
}

func TestStringSetDeduplicatesAndSorts(t *testing.T) {
	s := newStringSet("b", "a")
	s.add("a")
	s.addAll([]string{"c", "b"})
	require.Equal(t, []string{"a", "b", "c"}, s.sorted())
}
