// Package parser implements the C3 response parser: tolerant extraction
// of a JSON object from an LLM's raw text output, followed by per-kind
// structural validation. Grounded on original_source/classifier/
// classifier.py's _parse_llm_response and original_source/selector/
// combined_selector.py's response handling, which both strip markdown
// fences and scan for the first balanced brace region before decoding.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseError is returned for any malformed or incomplete LLM response.
// RawResponse is always retained for diagnostics.
type ParseError struct {
	Kind        string
	Reason      string
	RawResponse string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: %s: %s", e.Kind, e.Reason)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON strips a markdown code fence if present, then scans for the
// first balanced {...} region in the remaining text.
func extractJSON(raw string) (string, error) {
	text := raw
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// extractJSONArray is extractJSON's counterpart for top-level arrays,
// used by the planning parser.
func extractJSONArray(raw string) (string, error) {
	text := raw
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", fmt.Errorf("no JSON array found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON array in response")
}

// requireFields uses gjson to cheaply confirm each field exists before
// the caller pays for a strict encoding/json unmarshal, so a garbled
// response is rejected with the specific missing field name.
func requireFields(json string, fields ...string) error {
	for _, f := range fields {
		if !gjson.Get(json, f).Exists() {
			return fmt.Errorf("missing required field %q", f)
		}
	}
	return nil
}

// IntentResult is C3's parsed shape for the intent_classification kind.
type IntentResult struct {
	Category     string   `json:"category"`
	Action       string   `json:"action"`
	Confidence   float64  `json:"confidence"`
	Capabilities []string `json:"capabilities"`
}

// ParseIntent parses an intent_classification response.
func ParseIntent(raw string) (IntentResult, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return IntentResult{}, &ParseError{Kind: "intent", Reason: err.Error(), RawResponse: raw}
	}
	if err := requireFields(obj, "category", "action", "confidence"); err != nil {
		return IntentResult{}, &ParseError{Kind: "intent", Reason: err.Error(), RawResponse: raw}
	}

	var out IntentResult
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return IntentResult{}, &ParseError{Kind: "intent", Reason: err.Error(), RawResponse: raw}
	}
	if out.Capabilities == nil {
		out.Capabilities = []string{}
	}
	return out, nil
}

// EntityResult is one extracted entity in an entity_extraction response.
type EntityResult struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ParseEntities parses an entity_extraction response. An empty entities
// list is valid.
func ParseEntities(raw string) ([]EntityResult, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return nil, &ParseError{Kind: "entities", Reason: err.Error(), RawResponse: raw}
	}
	if err := requireFields(obj, "entities"); err != nil {
		return nil, &ParseError{Kind: "entities", Reason: err.Error(), RawResponse: raw}
	}

	var parsed struct {
		Entities []EntityResult `json:"entities"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, &ParseError{Kind: "entities", Reason: err.Error(), RawResponse: raw}
	}
	if parsed.Entities == nil {
		parsed.Entities = []EntityResult{}
	}
	return parsed.Entities, nil
}

// ConfidenceRiskResult is the merged confidence_and_risk response shape.
type ConfidenceRiskResult struct {
	Confidence float64
	Risk       string
	Reasoning  string
}

var riskWordPattern = regexp.MustCompile(`(?i)\b(low|medium|high|critical)\b`)

// ParseConfidenceAndRisk accepts either the merged {confidence, risk,
// reasoning} object or a bare numeric confidence. Percentages above 1.0
// are rescaled by 1/100. The risk level is found as a whole word anywhere
// in the response if not present as a structured field.
func ParseConfidenceAndRisk(raw string) (ConfidenceRiskResult, error) {
	trimmed := strings.TrimSpace(raw)

	// Bare-number shape: the whole response is just a confidence value.
	if obj, err := extractJSON(trimmed); err != nil {
		var bare float64
		if _, scanErr := fmt.Sscanf(trimmed, "%g", &bare); scanErr == nil {
			if bare > 1.0 {
				bare /= 100
			}
			risk := "medium"
			if m := riskWordPattern.FindString(raw); m != "" {
				risk = strings.ToLower(m)
			}
			return ConfidenceRiskResult{Confidence: bare, Risk: risk}, nil
		}
		return ConfidenceRiskResult{}, &ParseError{Kind: "confidence_and_risk", Reason: err.Error(), RawResponse: raw}
	} else {
		var parsed struct {
			Confidence float64 `json:"confidence"`
			Risk       string  `json:"risk"`
			Reasoning  string  `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
			return ConfidenceRiskResult{}, &ParseError{Kind: "confidence_and_risk", Reason: err.Error(), RawResponse: raw}
		}
		if parsed.Confidence > 1.0 {
			parsed.Confidence /= 100
		}
		risk := strings.ToLower(parsed.Risk)
		if risk == "" {
			if m := riskWordPattern.FindString(raw); m != "" {
				risk = strings.ToLower(m)
			} else {
				risk = "medium"
			}
		}
		return ConfidenceRiskResult{Confidence: parsed.Confidence, Risk: risk, Reasoning: parsed.Reasoning}, nil
	}
}

// ToolSelectionEntity mirrors EntityResult within a tool-selection response.
type ToolSelectionEntity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// SelectedToolRef is one {id, why} element of the select array.
type SelectedToolRef struct {
	ID  string `json:"id"`
	Why string `json:"why"`
}

// ToolSelectionResult is C3's parsed shape for the tool_selection kind.
type ToolSelectionResult struct {
	Intent     string                `json:"intent"`
	Entities   []ToolSelectionEntity `json:"entities"`
	Select     []SelectedToolRef     `json:"select"`
	Confidence float64               `json:"confidence"`
	RiskLevel  string                `json:"risk_level"`
	Reasoning  string                `json:"reasoning"`
}

// ParseToolSelection parses a tool_selection response. Unknown fields in
// the source JSON are silently ignored, per the contract.
func ParseToolSelection(raw string) (ToolSelectionResult, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return ToolSelectionResult{}, &ParseError{Kind: "tool_selection", Reason: err.Error(), RawResponse: raw}
	}
	if err := requireFields(obj, "select", "intent", "confidence", "risk_level"); err != nil {
		return ToolSelectionResult{}, &ParseError{Kind: "tool_selection", Reason: err.Error(), RawResponse: raw}
	}

	var out ToolSelectionResult
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return ToolSelectionResult{}, &ParseError{Kind: "tool_selection", Reason: err.Error(), RawResponse: raw}
	}
	return out, nil
}

// PlanStepResult is one parsed step specification from a planning response.
type PlanStepResult struct {
	ID                  string            `json:"id"`
	Description         string            `json:"description"`
	Tool                string            `json:"tool"`
	Inputs              map[string]string `json:"inputs"`
	Preconditions       []string          `json:"preconditions"`
	SuccessCriteria     []string          `json:"success_criteria"`
	FailureHandling     string            `json:"failure_handling"`
	EstimatedDurationS  float64           `json:"estimated_duration_s"`
	DependsOn           []string          `json:"depends_on"`
}

// ParsePlanningSteps parses a planning response's top-level JSON array of
// step specifications. Each step is assigned a fresh id of the form
// step_<uniqueHex> and an execution_order by arrival position — callers
// in pkg/planner own id assignment since it depends on a uuid source;
// this parser validates shape only.
func ParsePlanningSteps(raw string) ([]PlanStepResult, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, &ParseError{Kind: "planning", Reason: err.Error(), RawResponse: raw}
	}

	parsedArr := gjson.Parse(arr)
	if !parsedArr.IsArray() {
		return nil, &ParseError{Kind: "planning", Reason: "top-level value is not an array", RawResponse: raw}
	}

	var steps []PlanStepResult
	var stepErr error
	parsedArr.ForEach(func(_, value gjson.Result) bool {
		for _, f := range []string{"tool", "description", "estimated_duration_s"} {
			if !value.Get(f).Exists() {
				stepErr = &ParseError{Kind: "planning", Reason: fmt.Sprintf("step missing required field %q", f), RawResponse: raw}
				return false
			}
		}

		var step PlanStepResult
		if err := json.Unmarshal([]byte(value.Raw), &step); err != nil {
			stepErr = &ParseError{Kind: "planning", Reason: err.Error(), RawResponse: raw}
			return false
		}
		if step.Inputs == nil {
			step.Inputs = map[string]string{}
		}
		if step.Preconditions == nil {
			step.Preconditions = []string{}
		}
		if step.SuccessCriteria == nil {
			step.SuccessCriteria = []string{}
		}
		if step.DependsOn == nil {
			step.DependsOn = []string{}
		}
		steps = append(steps, step)
		return true
	})
	if stepErr != nil {
		return nil, stepErr
	}
	return steps, nil
}
