package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/classifier"
	"github.com/opsconductor/decisionpipeline/pkg/notification"
	"github.com/opsconductor/decisionpipeline/pkg/planner"
	"github.com/opsconductor/decisionpipeline/pkg/records"
	"github.com/opsconductor/decisionpipeline/pkg/selector"
	"github.com/opsconductor/decisionpipeline/pkg/selector/policy"
	"github.com/opsconductor/decisionpipeline/pkg/toolindex"
)

// routingClient dispatches a canned response by matching a fragment of
// each prompt's system text, so the three stages' concurrent and
// sequential LLM calls can all share one client regardless of call
// order or count.
type routingClient struct {
	responses map[string]llm.Response
	err       error
}

func (c *routingClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.err != nil {
		return llm.Response{}, c.err
	}
	for fragment, resp := range c.responses {
		if strings.Contains(req.System, fragment) {
			return resp, nil
		}
	}
	return llm.Response{}, nil
}
func (c *routingClient) HealthCheck(ctx context.Context) error { return c.err }
func (c *routingClient) Model() string                          { return "stub" }

func jsonResponse(v interface{}) llm.Response {
	b, _ := json.Marshal(v)
	return llm.Response{Text: string(b)}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubCatalog struct {
	tools map[string]records.Tool
}

func (c *stubCatalog) Lookup(ctx context.Context, id string) (records.Tool, bool, error) {
	tool, ok := c.tools[id]
	return tool, ok, nil
}

func happyPathResponses() map[string]llm.Response {
	return map[string]llm.Response{
		"classify an operator": jsonResponse(map[string]interface{}{
			"category": "service_management", "action": "restart_service", "confidence": 0.9,
		}),
		"extract structured entities": jsonResponse(map[string]interface{}{
			"entities": []map[string]interface{}{{"type": "service", "value": "nginx", "confidence": 0.9}},
		}),
		"refine it": jsonResponse(map[string]interface{}{
			"confidence": 0.85, "risk": "medium", "reasoning": "routine restart",
		}),
		"select the fewest tools": jsonResponse(map[string]interface{}{
			"intent":     "service_management",
			"select":     []map[string]interface{}{{"id": "restart_service", "why": "restart the failing service"}},
			"confidence": 0.85,
			"risk_level": "medium",
		}),
		"generate an ordered execution plan": jsonResponse([]map[string]interface{}{
			{
				"tool":                 "systemctl",
				"description":          "restart nginx",
				"inputs":               map[string]string{"action": "restart", "service": "nginx"},
				"estimated_duration_s": 15.0,
			},
		}),
	}
}

func buildOrchestrator(t *testing.T, client llm.Client, notifier *notification.Notifier) *Orchestrator {
	t.Helper()
	ctx := context.Background()

	c := classifier.New(client, prompt.NewRegistry(), testLogger(), 0.6)

	engine, err := policy.NewEngine(ctx)
	require.NoError(t, err)
	rows := []toolindex.IndexRow{{ID: "restart_service", Name: "Restart Service", Desc: "Restart a systemd service"}}
	catalog := map[string]records.Tool{"restart_service": {ID: "restart_service", Name: "restart_service"}}
	index := toolindex.NewMemoryIndex(rows)
	budget := toolindex.BudgetConfig{ContextWindow: 100000, BaseTokens: 0, OutputReserve: 0, TokensPerRow: 10}
	s := selector.New(client, prompt.NewRegistry(), index, nil, &stubCatalog{tools: catalog}, engine, budget, testLogger())

	p := planner.New(client, prompt.NewRegistry(), testLogger())

	if notifier == nil {
		notifier = notification.New("", "#alerts", testLogger())
	}
	return New(c, s, p, notifier, testLogger())
}

func TestProcessEndToEndProducesPlan(t *testing.T) {
	client := &routingClient{responses: happyPathResponses()}
	o := buildOrchestrator(t, client, nil)

	result, err := o.Process(context.Background(), "restart nginx service", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Decision)
	require.NotNil(t, result.Selection)
	require.NotNil(t, result.Plan)
	require.Equal(t, result.Decision.ID, result.Selection.DecisionID)
	require.Equal(t, result.Selection.ID, result.Plan.SelectionID)
	require.Len(t, result.Plan.Steps, 1)
}

func TestProcessShortCircuitsOnInformationRequest(t *testing.T) {
	responses := map[string]llm.Response{
		"classify an operator": jsonResponse(map[string]interface{}{
			"category": "information", "action": "list", "confidence": 0.95,
		}),
		"extract structured entities": jsonResponse(map[string]interface{}{
			"entities": []map[string]interface{}{},
		}),
	}
	client := &routingClient{responses: responses}
	o := buildOrchestrator(t, client, nil)

	result, err := o.Process(context.Background(), "list available tools", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Decision)
	require.Nil(t, result.Selection)
	require.Nil(t, result.Plan)
	require.Equal(t, "stage_d", result.Decision.NextStage)
}

func TestProcessShortCircuitsOnEmptySelection(t *testing.T) {
	responses := happyPathResponses()
	responses["select the fewest tools"] = jsonResponse(map[string]interface{}{
		"intent":     "service_management",
		"select":     []map[string]interface{}{},
		"confidence": 0.8,
		"risk_level": "low",
	})
	client := &routingClient{responses: responses}
	o := buildOrchestrator(t, client, nil)

	result, err := o.Process(context.Background(), "restart nginx service", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Selection)
	require.Nil(t, result.Plan)
}

func TestProcessPropagatesClassifierError(t *testing.T) {
	client := &routingClient{err: context.DeadlineExceeded}
	o := buildOrchestrator(t, client, nil)

	_, err := o.Process(context.Background(), "restart nginx service", nil)
	require.Error(t, err)
}

func TestProcessRespectsPriorCancellation(t *testing.T) {
	client := &routingClient{responses: happyPathResponses()}
	o := buildOrchestrator(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Process(ctx, "restart nginx service", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cancelled")
}

func TestHealthCheckAggregatesAllStages(t *testing.T) {
	client := &routingClient{responses: happyPathResponses()}
	o := buildOrchestrator(t, client, nil)

	health := o.HealthCheck(context.Background())
	require.True(t, health.Classifier.Healthy)
	require.True(t, health.Selector.Healthy)
	require.True(t, health.Planner.Healthy)
}
