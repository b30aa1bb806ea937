package prompt

import (
	"strings"
	"testing"
)

func TestRegistryGetIntentClassification(t *testing.T) {
	r := NewRegistry()

	pair, err := r.Get(IntentClassification, map[string]interface{}{
		"request": "restart nginx on web-01",
		"context": "",
	})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !strings.Contains(pair.user, "restart nginx on web-01") {
		t.Errorf("user prompt missing request text: %q", pair.user)
	}
	if !strings.Contains(pair.system, "JSON") {
		t.Errorf("system prompt should describe the JSON schema: %q", pair.system)
	}
}

func TestRegistryGetMissingVariableFails(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(IntentClassification, map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for missing 'request' variable, got nil")
	}
}

func TestRegistryGetUnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(Kind("not_a_real_kind"), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for unknown kind, got nil")
	}
}

func TestRegistryGetToolSelectionEmbedsCandidates(t *testing.T) {
	r := NewRegistry()

	pair, err := r.Get(ToolSelection, map[string]interface{}{
		"request":         "restart nginx",
		"candidates_json": `[{"id":"systemctl","name":"systemctl"}]`,
	})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !strings.Contains(pair.user, "systemctl") {
		t.Errorf("user prompt missing candidates: %q", pair.user)
	}
}

func TestRegistryGetPlanningOmitsSopWhenEmpty(t *testing.T) {
	r := NewRegistry()

	pair, err := r.Get(Planning, map[string]interface{}{
		"request":             "restart nginx",
		"intent_category":     "service_management",
		"intent_action":       "restart",
		"entities_json":       `[]`,
		"selected_tools_json": `[]`,
		"catalog_fields":      "name, description",
		"sop_snippets":        "",
	})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if strings.Contains(pair.user, "Relevant procedure snippets") {
		t.Errorf("expected sop_snippets section to be omitted when empty: %q", pair.user)
	}
}

func TestAllKindsParseAndRender(t *testing.T) {
	r := NewRegistry()

	vars := map[string]interface{}{
		"request":             "restart nginx",
		"context":             "",
		"intent_category":     "service_management",
		"intent_action":       "restart",
		"entities_json":       `[]`,
		"rule_confidence":     0.7,
		"rule_risk":           "medium",
		"candidates_json":     `[]`,
		"selected_tools_json": `[]`,
		"catalog_fields":      "name, description",
		"sop_snippets":        "",
	}

	for _, kind := range []Kind{IntentClassification, EntityExtraction, ConfidenceAndRisk, ToolSelection, Planning} {
		if _, err := r.Get(kind, vars); err != nil {
			t.Errorf("Get(%s) returned error: %v", kind, err)
		}
	}
}
