// Package policy synthesizes a Stage AB execution policy from risk level,
// tool count, and environment, via a small embedded Rego module rather
// than an if/else ladder — mirroring the dedicated policy component the
// original system kept separate from selection logic
// (stage_b/policy_engine.py).
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/opsconductor/decisionpipeline/pkg/records"
)

//go:embed policy.rego
var policyModule string

// Input is the document evaluated against the policy module.
type Input struct {
	RiskLevel             string `json:"risk_level"`
	ToolCount             int    `json:"tool_count"`
	ProductionEnvironment bool   `json:"production_environment"`
}

// Engine evaluates the embedded policy module. It is safe for concurrent
// use once constructed; construction compiles the module once.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the embedded policy.rego module.
func NewEngine(ctx context.Context) (*Engine, error) {
	query, err := rego.New(
		rego.Query("data.opsconductor.selector.policy"),
		rego.Module("policy.rego", policyModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compiling embedded module: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate synthesizes an ExecutionPolicy from in, per §4.7 step 5.
func (e *Engine) Evaluate(ctx context.Context, in Input) (records.ExecutionPolicy, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"risk_level":             in.RiskLevel,
		"tool_count":             in.ToolCount,
		"production_environment": in.ProductionEnvironment,
	}))
	if err != nil {
		return records.ExecutionPolicy{}, fmt.Errorf("policy: evaluating: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return records.ExecutionPolicy{}, fmt.Errorf("policy: evaluation produced no result")
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return records.ExecutionPolicy{}, fmt.Errorf("policy: unexpected result shape %T", results[0].Expressions[0].Value)
	}

	requiresApproval, _ := doc["requires_approval"].(bool)
	rollbackRequired, _ := doc["rollback_required"].(bool)
	parallelExecution, _ := doc["parallel_execution"].(bool)
	productionEnvironment, _ := doc["production_environment"].(bool)
	maxExecutionTime := 300
	switch v := doc["max_execution_time_s"].(type) {
	case int64:
		maxExecutionTime = int(v)
	case int:
		maxExecutionTime = v
	case float64:
		maxExecutionTime = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			maxExecutionTime = int(n)
		}
	}

	return records.ExecutionPolicy{
		RequiresApproval:      requiresApproval,
		ProductionEnvironment: productionEnvironment,
		RiskLevel:             records.RiskLevel(in.RiskLevel),
		MaxExecutionTimeS:     maxExecutionTime,
		ParallelExecution:     parallelExecution,
		RollbackRequired:      rollbackRequired,
	}, nil
}
