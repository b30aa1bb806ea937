// Package selector implements Stage AB, the combined semantic-retrieval
// tool selector: given a free-text request it retrieves a token-budgeted
// candidate tool list (pkg/toolindex), asks the LLM to pick the minimal
// set of tool IDs, validates those IDs against the catalog, and
// synthesizes an execution policy. Grounded on
// original_source/pipeline/stages/stage_ab/combined_selector.go's
// CombinedSelector.process.
package selector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/parser"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/records"
	"github.com/opsconductor/decisionpipeline/pkg/selector/policy"
	"github.com/opsconductor/decisionpipeline/pkg/toolindex"
)

const stageName = "stage_ab"

// sudoTools recognizes tool names whose execution requires elevated
// privilege, per §4.7 step 7.
var sudoTools = []string{"systemctl", "iptables", "useradd", "usermod", "apt", "yum"}

// entityInputMapping maps an entity type to the input names it makes
// available, per §4.7 step 6.
var entityInputMapping = map[string][]string{
	"service":     {"service_name", "service"},
	"hostname":    {"hostname", "host", "target"},
	"command":     {"command", "cmd"},
	"file_path":   {"path", "file"},
	"port":        {"port"},
	"environment": {"environment", "env"},
}

var alwaysAvailableInputs = []string{"user_request", "timestamp"}

// Health reports Stage AB's readiness.
type Health struct {
	Stage      string
	Healthy    bool
	LLMHealthy bool
	ToolCount  int
}

// Selector implements Stage AB.
type Selector struct {
	client   llm.Client
	prompts  *prompt.Registry
	index    toolindex.ToolIndex
	embedder toolindex.EmbeddingService
	catalog  toolindex.ToolCatalog
	policy   *policy.Engine
	budget   toolindex.BudgetConfig
	log      *logrus.Logger
}

// New builds a Selector.
func New(client llm.Client, prompts *prompt.Registry, index toolindex.ToolIndex, embedder toolindex.EmbeddingService, catalog toolindex.ToolCatalog, policyEngine *policy.Engine, budget toolindex.BudgetConfig, log *logrus.Logger) *Selector {
	return &Selector{
		client:   client,
		prompts:  prompts,
		index:    index,
		embedder: embedder,
		catalog:  catalog,
		policy:   policyEngine,
		budget:   budget,
		log:      log,
	}
}

// Process implements §4.7's algorithm end-to-end.
func (s *Selector) Process(ctx context.Context, decisionID, request string, reqContext map[string]interface{}) (*records.Selection, error) {
	start := time.Now()
	requestID := records.NewSelectionID(time.Now())
	if decisionID == "" {
		// Callers that run Stage AB standalone, without a preceding
		// Stage A decision, still get a well-formed decision_id.
		decisionID = records.NewDecisionID(time.Now())
	}

	platform := ""
	if reqContext != nil {
		if p, ok := reqContext["platform"].(string); ok {
			platform = p
		}
	}

	candidates, telemetry, err := toolindex.Retrieve(ctx, requestID, request, platform, s.index, s.embedder, s.budget, s.log)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.IndexError, stageName, "tool retrieval failed", err)
	}
	retrievalMS := telemetry.RetrievalMS

	llmStart := time.Now()
	parsed, err := s.selectTools(ctx, request, candidates)
	if err != nil {
		return nil, err
	}
	llmMS := time.Since(llmStart).Milliseconds()

	validatedTools, err := s.validateToolIDs(ctx, parsed.Select)
	if err != nil {
		return nil, err
	}

	riskLevel := records.RiskLevel(strings.ToLower(parsed.RiskLevel))
	switch riskLevel {
	case records.RiskLow, records.RiskMedium, records.RiskHigh, records.RiskCritical:
	default:
		riskLevel = records.RiskMedium
	}

	productionEnvironment := false
	if reqContext != nil {
		if env, ok := reqContext["environment"].(string); ok {
			productionEnvironment = env == "production"
		}
	}

	execPolicy, err := s.policy.Evaluate(ctx, policy.Input{
		RiskLevel:             string(riskLevel),
		ToolCount:             len(validatedTools),
		ProductionEnvironment: productionEnvironment,
	})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "policy synthesis failed", err)
	}

	additionalInputs := calculateAdditionalInputs(parsed.Entities, validatedTools)
	envRequirements := determineEnvironmentRequirements(validatedTools)
	nextStage := determineNextStage(validatedTools)

	// The tool-selection response carries intent as a single category
	// string (see prompt.ToolSelection), not Stage A's category/action
	// pair; Action mirrors Category so Intent's required-field invariant
	// still holds for a record this stage only partially populates.
	intent := records.Intent{
		Category:   parsed.Intent,
		Action:     parsed.Intent,
		Confidence: parsed.Confidence,
	}
	entities := make([]records.Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		entities = append(entities, records.Entity{Type: e.Type, Value: e.Value, Confidence: parsed.Confidence})
	}

	selection := &records.Selection{
		ID:                      requestID,
		SchemaVersion:           "v1",
		DecisionID:              decisionID,
		Intent:                  intent,
		Entities:                records.DedupEntities(entities),
		SelectedTools:           validatedTools,
		TotalTools:              len(validatedTools),
		Policy:                  execPolicy,
		AdditionalInputsNeeded:  additionalInputs,
		EnvironmentRequirements: envRequirements,
		ReadyForExecution:       records.ReadyForExecutionFor(validatedTools, additionalInputs),
		Confidence:              parsed.Confidence,
		NextStage:               nextStage,
		CreatedAt:               time.Now(),
	}

	if err := selection.Validate(); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "assembled selection failed validation", err)
	}

	s.log.WithFields(logrus.Fields{
		"component":      "selector",
		"selection_id":   selection.ID,
		"retrieval_ms":   retrievalMS,
		"llm_ms":         llmMS,
		"total_ms":       time.Since(start).Milliseconds(),
		"selected_tools": len(validatedTools),
		"next_stage":     nextStage,
	}).Debug("stage AB selection complete")

	return selection, nil
}

func (s *Selector) selectTools(ctx context.Context, request string, candidates []toolindex.Candidate) (*parser.ToolSelectionResult, error) {
	candidatesJSON, err := candidatesToJSON(candidates)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "encoding candidate list", err)
	}

	pair, err := s.prompts.Get(prompt.ToolSelection, map[string]interface{}{
		"request":         request,
		"candidates_json": candidatesJSON,
	})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "rendering tool selection prompt", err)
	}

	resp, err := s.client.Generate(ctx, llm.Request{
		System:      pair.System,
		Prompt:      pair.User,
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.LLMUnavailable, stageName, "tool selection LLM call failed", err)
	}

	parsed, err := parser.ParseToolSelection(resp.Text)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.LLMParseError, stageName, "parsing tool selection response", err)
	}
	return &parsed, nil
}

func (s *Selector) validateToolIDs(ctx context.Context, selected []parser.SelectedToolRef) ([]records.SelectedTool, error) {
	validated := make([]records.SelectedTool, 0, len(selected))
	for _, sel := range selected {
		tool, ok, err := s.catalog.Lookup(ctx, sel.ID)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.IndexError, stageName, fmt.Sprintf("looking up tool %q", sel.ID), err)
		}
		if !ok {
			s.log.WithFields(logrus.Fields{"component": "selector", "tool_id": sel.ID}).Warn("LLM selected non-existent tool, dropping")
			continue
		}
		validated = append(validated, records.SelectedTool{
			ToolName:       tool.Name,
			Justification:  sel.Why,
			ExecutionOrder: len(validated) + 1,
		})
	}
	return validated, nil
}

func calculateAdditionalInputs(entities []parser.ToolSelectionEntity, tools []records.SelectedTool) []string {
	needed := map[string]struct{}{}
	for _, tool := range tools {
		for _, input := range tool.InputsNeeded {
			needed[input] = struct{}{}
		}
	}

	available := map[string]struct{}{}
	for _, input := range alwaysAvailableInputs {
		available[input] = struct{}{}
	}
	for _, entity := range entities {
		for _, input := range entityInputMapping[entity.Type] {
			available[input] = struct{}{}
		}
	}

	missing := make([]string, 0)
	for input := range needed {
		if _, ok := available[input]; !ok {
			missing = append(missing, input)
		}
	}
	return missing
}

func determineEnvironmentRequirements(tools []records.SelectedTool) map[string]interface{} {
	sudoRequired := false
	for _, tool := range tools {
		lower := strings.ToLower(tool.ToolName)
		for _, sudoTool := range sudoTools {
			if strings.Contains(lower, sudoTool) {
				sudoRequired = true
			}
		}
	}
	if !sudoRequired {
		return nil
	}
	dependencies := make([]string, 0, len(tools))
	for _, tool := range tools {
		dependencies = append(dependencies, tool.DependsOn...)
	}
	return map[string]interface{}{
		"sudo_required": true,
		"dependencies":  dependencies,
	}
}

// determineNextStage implements §4.7 step 8: tool selection, not risk,
// decides whether a plan is built.
func determineNextStage(tools []records.SelectedTool) string {
	if len(tools) == 0 {
		return "stage_d"
	}
	return "stage_c"
}

// HealthCheck reports Stage AB's readiness, mirroring
// CombinedSelector.health_check.
func (s *Selector) HealthCheck(ctx context.Context) Health {
	llmErr := s.client.HealthCheck(ctx)
	toolCount, _ := s.index.Size(ctx)
	return Health{
		Stage:      stageName,
		Healthy:    llmErr == nil,
		LLMHealthy: llmErr == nil,
		ToolCount:  toolCount,
	}
}
