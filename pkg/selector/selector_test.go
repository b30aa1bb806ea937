package selector

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
	"github.com/opsconductor/decisionpipeline/pkg/selector/policy"
	"github.com/opsconductor/decisionpipeline/pkg/toolindex"
)

type stubClient struct {
	resp llm.Response
	err  error
}

func (s *stubClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return s.resp, s.err
}
func (s *stubClient) HealthCheck(ctx context.Context) error { return nil }
func (s *stubClient) Model() string                         { return "stub" }

type stubCatalog struct {
	tools map[string]records.Tool
}

func (c *stubCatalog) Lookup(ctx context.Context, id string) (records.Tool, bool, error) {
	tool, ok := c.tools[id]
	return tool, ok, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func jsonResponse(v interface{}) llm.Response {
	b, _ := json.Marshal(v)
	return llm.Response{Text: string(b)}
}

func testSelector(t *testing.T, resp llm.Response, rows []toolindex.IndexRow, catalog map[string]records.Tool) *Selector {
	t.Helper()
	ctx := context.Background()
	engine, err := policy.NewEngine(ctx)
	require.NoError(t, err)

	index := toolindex.NewMemoryIndex(rows)
	client := &stubClient{resp: resp}
	budget := toolindex.BudgetConfig{ContextWindow: 100000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 10}

	return New(client, prompt.NewRegistry(), index, nil, &stubCatalog{tools: catalog}, engine, budget, testLogger())
}

func TestProcessSelectsValidatedTools(t *testing.T) {
	resp := jsonResponse(map[string]interface{}{
		"intent":     "system",
		"entities":   []map[string]interface{}{{"type": "service", "value": "nginx", "confidence": 0.9}},
		"select":     []map[string]interface{}{{"id": "restart_service", "why": "restart the failing service"}},
		"confidence": 0.85,
		"risk_level": "medium",
		"reasoning":  "restart resolves the crash loop",
	})

	rows := []toolindex.IndexRow{{ID: "restart_service", Name: "Restart Service", Desc: "Restart a systemd service"}}
	catalog := map[string]records.Tool{"restart_service": {ID: "restart_service", Name: "restart_service"}}

	sel := testSelector(t, resp, rows, catalog)
	selection, err := sel.Process(context.Background(), "dec_test", "restart nginx", nil)
	require.NoError(t, err)
	require.Len(t, selection.SelectedTools, 1)
	require.Equal(t, "restart_service", selection.SelectedTools[0].ToolName)
	require.Equal(t, "stage_c", selection.NextStage)
	require.Equal(t, records.RiskMedium, selection.Policy.RiskLevel)
}

func TestProcessDropsUnknownToolID(t *testing.T) {
	resp := jsonResponse(map[string]interface{}{
		"intent":     "system",
		"select":     []map[string]interface{}{{"id": "ghost_tool", "why": "does not exist"}},
		"confidence": 0.6,
		"risk_level": "low",
	})

	rows := []toolindex.IndexRow{{ID: "restart_service", Name: "Restart Service", Desc: "Restart a systemd service"}}
	sel := testSelector(t, resp, rows, map[string]records.Tool{})

	selection, err := sel.Process(context.Background(), "dec_test", "restart something", nil)
	require.NoError(t, err)
	require.Empty(t, selection.SelectedTools)
	require.Equal(t, "stage_d", selection.NextStage)
}

func TestProcessEmptySelectionRoutesToStageD(t *testing.T) {
	resp := jsonResponse(map[string]interface{}{
		"intent":     "information",
		"select":     []map[string]interface{}{},
		"confidence": 0.9,
		"risk_level": "low",
	})

	sel := testSelector(t, resp, nil, map[string]records.Tool{})
	selection, err := sel.Process(context.Background(), "dec_test", "what is the uptime of the server", nil)
	require.NoError(t, err)
	require.Equal(t, "stage_d", selection.NextStage)
}

func TestProcessHighRiskRequiresApprovalAndRollback(t *testing.T) {
	resp := jsonResponse(map[string]interface{}{
		"intent":     "system",
		"select":     []map[string]interface{}{{"id": "restart_service", "why": "mitigate incident"}},
		"confidence": 0.8,
		"risk_level": "high",
	})

	rows := []toolindex.IndexRow{{ID: "restart_service", Name: "Restart Service", Desc: "Restart a systemd service"}}
	catalog := map[string]records.Tool{"restart_service": {ID: "restart_service", Name: "restart_service"}}
	sel := testSelector(t, resp, rows, catalog)

	selection, err := sel.Process(context.Background(), "dec_test", "restart nginx now", nil)
	require.NoError(t, err)
	require.True(t, selection.Policy.RequiresApproval)
	require.True(t, selection.Policy.RollbackRequired)
}

func TestProcessSudoToolSetsEnvironmentRequirement(t *testing.T) {
	resp := jsonResponse(map[string]interface{}{
		"intent":     "system",
		"select":     []map[string]interface{}{{"id": "systemctl_restart", "why": "restart via systemctl"}},
		"confidence": 0.8,
		"risk_level": "medium",
	})

	rows := []toolindex.IndexRow{{ID: "systemctl_restart", Name: "systemctl_restart", Desc: "restart via systemctl"}}
	catalog := map[string]records.Tool{"systemctl_restart": {ID: "systemctl_restart", Name: "systemctl_restart"}}
	sel := testSelector(t, resp, rows, catalog)

	selection, err := sel.Process(context.Background(), "dec_test", "restart the service via systemctl", nil)
	require.NoError(t, err)
	require.Contains(t, selection.EnvironmentRequirements, "sudo_required")
}

func TestProcessPropagatesLLMError(t *testing.T) {
	sel := testSelector(t, llm.Response{}, nil, nil)
	sel.client = &stubClient{err: errors.New("llm backend unreachable")}

	_, err := sel.Process(context.Background(), "dec_test", "anything", nil)
	require.Error(t, err)
}

func TestHealthCheckReportsToolCount(t *testing.T) {
	rows := []toolindex.IndexRow{{ID: "a"}, {ID: "b"}}
	sel := testSelector(t, llm.Response{}, rows, nil)
	health := sel.HealthCheck(context.Background())
	require.True(t, health.Healthy)
	require.Equal(t, 2, health.ToolCount)
}
