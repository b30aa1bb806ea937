package planner

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/parser"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// catalogFields names the asset-database fields the planning prompt
// offers the LLM, so it selects only the fields a query actually needs
// rather than requesting everything. Condensed from
// planner.go's _build_planning_system_prompt asset-schema block.
const catalogFields = "name, hostname, ip_address, description, tags, device_type, " +
	"hardware_make, hardware_model, os_type, os_version, data_center, status, " +
	"environment, criticality, owner, service_type, port, database_type"

type plannedEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type plannedTool struct {
	ToolName      string   `json:"tool_name"`
	Justification string   `json:"justification"`
	InputsNeeded  []string `json:"inputs_needed,omitempty"`
}

// generateSteps asks the LLM for the ordered step list, per §4.8.1. There
// is no rule-based fallback: an LLM failure is fatal, matching the
// original's fail-fast philosophy ("OpsConductor requires AI-BRAIN to
// function").
func (p *Planner) generateSteps(ctx context.Context, decision *records.Decision, selection *records.Selection, sopSnippets []string) ([]records.ExecutionStep, int64, error) {
	entities := make([]plannedEntity, 0, len(decision.Entities))
	for _, e := range decision.Entities {
		entities = append(entities, plannedEntity{Type: e.Type, Value: e.Value})
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "encoding entities for planning prompt", err)
	}

	tools := make([]plannedTool, 0, len(selection.SelectedTools))
	for _, t := range selection.SelectedTools {
		tools = append(tools, plannedTool{ToolName: t.ToolName, Justification: t.Justification, InputsNeeded: t.InputsNeeded})
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "encoding selected tools for planning prompt", err)
	}

	pair, err := p.prompts.Get(prompt.Planning, map[string]interface{}{
		"catalog_fields":      catalogFields,
		"request":             decision.Request,
		"intent_category":     decision.Intent.Category,
		"intent_action":       decision.Intent.Action,
		"entities_json":       string(entitiesJSON),
		"selected_tools_json": string(toolsJSON),
		"sop_snippets":        strings.Join(sopSnippets, "\n"),
	})
	if err != nil {
		return nil, 0, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "rendering planning prompt", err)
	}

	p.stats.incLLMCalls()
	llmStart := time.Now()
	resp, err := p.client.Generate(ctx, llm.Request{
		System:      pair.System,
		Prompt:      pair.User,
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	llmMS := time.Since(llmStart).Milliseconds()
	if err != nil {
		return nil, llmMS, pipelineerr.Wrap(pipelineerr.LLMUnavailable, stageName, "planning LLM call failed", err)
	}

	parsed, err := parser.ParsePlanningSteps(resp.Text)
	if err != nil {
		return nil, llmMS, pipelineerr.Wrap(pipelineerr.LLMParseError, stageName, "parsing planning response", err)
	}

	steps := make([]records.ExecutionStep, 0, len(parsed))
	for i, s := range parsed {
		steps = append(steps, records.ExecutionStep{
			ID:                records.NewStepID(s.Tool, ""),
			Description:       s.Description,
			Tool:              s.Tool,
			Inputs:            s.Inputs,
			Preconditions:     s.Preconditions,
			SuccessCriteria:   s.SuccessCriteria,
			FailureHandling:   s.FailureHandling,
			EstimatedDuration: time.Duration(s.EstimatedDurationS * float64(time.Second)),
			DependsOn:         s.DependsOn,
			ExecutionOrder:    i + 1,
		})
	}
	resolveDependsOnIndices(steps)
	return steps, llmMS, nil
}

// resolveDependsOnIndices rewrites any depends_on entry that is a plain
// arrival-position index (the planning prompt allows either an index or
// a wildcard pattern, per prompt.Planning's system template) into the
// freshly generated id of the step at that position, in place.
func resolveDependsOnIndices(steps []records.ExecutionStep) {
	for i, s := range steps {
		resolved := make([]string, 0, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if idx, err := strconv.Atoi(dep); err == nil && idx >= 0 && idx < len(steps) {
				resolved = append(resolved, steps[idx].ID)
				continue
			}
			resolved = append(resolved, dep)
		}
		steps[i].DependsOn = resolved
	}
}
