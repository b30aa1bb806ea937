package classifier

import (
	"context"
	"strings"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/parser"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// supportedCategories mirrors get_supported_categories: a closed map of
// category to its valid actions, used to validate an LLM-produced intent
// before accepting it.
var supportedCategories = map[string][]string{
	"automation": {
		"restart_service", "start_service", "stop_service", "deploy_application",
		"run_script", "execute_command", "backup_data", "restore_data", "emergency_response",
	},
	"monitoring": {
		"check_status", "view_logs", "get_metrics", "check_health",
		"monitor_performance", "view_dashboard", "check_alerts",
	},
	"troubleshooting": {
		"diagnose_issue", "fix_problem", "investigate_error", "diagnose_performance",
		"check_connectivity", "analyze_logs", "debug_application",
	},
	"configuration": {
		"update_config", "change_settings", "modify_parameters", "update_environment",
		"configure_service", "set_permissions", "update_security",
	},
	"information": {
		"get_help", "explain_concept", "show_documentation", "list_resources",
		"describe_system", "show_examples", "get_status_info", "query", "list", "count", "show", "get",
	},
}

func isValidIntent(category, action string) bool {
	actions, ok := supportedCategories[category]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// classifyIntent classifies request's intent with a single same-temperature
// retry on an invalid/unparseable response, falling back to keyword-pair
// pattern matching if both attempts fail. A transport-level failure on the
// final attempt surfaces as LLMUnavailable.
func (c *Classifier) classifyIntent(ctx context.Context, request string) (records.Intent, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		intent, err := c.callIntentLLM(ctx, request)
		if err != nil {
			lastErr = err
			continue
		}
		if isValidIntent(intent.Category, intent.Action) {
			return intent, nil
		}
		lastErr = pipelineerr.New(pipelineerr.LLMParseError, stageName, "intent classification returned an unsupported category/action pair")
	}

	if lastErr != nil {
		if _, ok := asConnError(lastErr); ok {
			return records.Intent{}, pipelineerr.Wrap(pipelineerr.LLMUnavailable, stageName, "intent classification LLM unavailable", lastErr)
		}
	}

	return patternBasedIntent(request), nil
}

func asConnError(err error) (error, bool) {
	var connErr *llm.ConnectionError
	var genErr *llm.GenerationError
	switch {
	case asErr(err, &connErr):
		return connErr, true
	case asErr(err, &genErr):
		return genErr, true
	}
	return nil, false
}

func asErr[T error](err error, target *T) bool {
	for err != nil {
		if t, ok := err.(T); ok {
			*target = t
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (c *Classifier) callIntentLLM(ctx context.Context, request string) (records.Intent, error) {
	pair, err := c.prompts.Get(prompt.IntentClassification, map[string]interface{}{
		"request": request,
		"context": "",
	})
	if err != nil {
		return records.Intent{}, err
	}

	resp, err := c.client.Generate(ctx, llm.Request{
		Prompt:      pair.User,
		System:      pair.System,
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return records.Intent{}, err
	}

	parsed, err := parser.ParseIntent(resp.Text)
	if err != nil {
		return records.Intent{}, err
	}

	return records.Intent{
		Category:     parsed.Category,
		Action:       parsed.Action,
		Confidence:   parsed.Confidence,
		Capabilities: parsed.Capabilities,
	}, nil
}

// actionPattern is one keyword-pair → (category, action, confidence) rule
// in patternBasedIntent's priority-ordered table.
type actionPattern struct {
	keywords   [2]string
	category   string
	action     string
	confidence float64
}

var actionPatterns = []actionPattern{
	{[2]string{"restart", "service"}, "automation", "restart_service", 0.8},
	{[2]string{"start", "service"}, "automation", "start_service", 0.8},
	{[2]string{"stop", "service"}, "automation", "stop_service", 0.8},
	{[2]string{"restart", "apache"}, "automation", "restart_service", 0.8},
	{[2]string{"restart", "nginx"}, "automation", "restart_service", 0.8},
	{[2]string{"restart", "mysql"}, "automation", "restart_service", 0.8},
	{[2]string{"deploy", "application"}, "automation", "deploy_application", 0.8},
	{[2]string{"run", "script"}, "automation", "run_script", 0.8},
	{[2]string{"execute", "command"}, "automation", "execute_command", 0.8},
	{[2]string{"backup", "data"}, "automation", "backup_data", 0.8},
	{[2]string{"restore", "data"}, "automation", "restore_data", 0.8},
	{[2]string{"update", "config"}, "configuration", "update_config", 0.8},
	{[2]string{"change", "settings"}, "configuration", "change_settings", 0.8},
	{[2]string{"modify", "parameters"}, "configuration", "modify_parameters", 0.8},
	{[2]string{"configure", "service"}, "configuration", "configure_service", 0.8},
	{[2]string{"set", "permissions"}, "configuration", "set_permissions", 0.8},
	{[2]string{"fix", "problem"}, "troubleshooting", "fix_problem", 0.8},
	{[2]string{"diagnose", "issue"}, "troubleshooting", "diagnose_issue", 0.8},
	{[2]string{"investigate", "error"}, "troubleshooting", "investigate_error", 0.8},
	{[2]string{"debug", "application"}, "troubleshooting", "debug_application", 0.8},
	{[2]string{"urgent", "database"}, "automation", "emergency_response", 0.9},
	{[2]string{"emergency", "down"}, "automation", "emergency_response", 0.9},
	{[2]string{"critical", "issue"}, "automation", "emergency_response", 0.9},
	{[2]string{"database", "down"}, "automation", "emergency_response", 0.9},
	{[2]string{"server", "down"}, "automation", "emergency_response", 0.9},
	{[2]string{"system", "down"}, "automation", "emergency_response", 0.9},
	{[2]string{"outage", "users"}, "automation", "emergency_response", 0.9},
}

var monitoringPatterns = []actionPattern{
	{[2]string{"check", "status"}, "monitoring", "check_status", 0.8},
	{[2]string{"view", "logs"}, "monitoring", "view_logs", 0.8},
	{[2]string{"get", "metrics"}, "monitoring", "get_metrics", 0.8},
	{[2]string{"check", "health"}, "monitoring", "check_health", 0.8},
	{[2]string{"monitor", "performance"}, "monitoring", "monitor_performance", 0.8},
	{[2]string{"view", "dashboard"}, "monitoring", "view_dashboard", 0.8},
	{[2]string{"check", "alerts"}, "monitoring", "check_alerts", 0.8},
}

var infoPatterns = []actionPattern{
	{[2]string{"show", "status"}, "information", "get_status_info", 0.8},
	{[2]string{"get", "help"}, "information", "get_help", 0.8},
	{[2]string{"explain", "concept"}, "information", "explain_concept", 0.8},
	{[2]string{"show", "documentation"}, "information", "show_documentation", 0.8},
	{[2]string{"list", "resources"}, "information", "list_resources", 0.8},
	{[2]string{"describe", "system"}, "information", "describe_system", 0.8},
	{[2]string{"what", "is"}, "information", "explain_concept", 0.7},
	{[2]string{"how", "to"}, "information", "show_examples", 0.7},
}

var emergencyWords = []string{"urgent", "emergency", "critical", "down", "outage", "failure", "crashed"}
var singleActionWords = []string{"restart", "start", "stop", "deploy", "execute", "run", "backup", "restore", "fix", "configure", "update", "modify"}
var singleMonitoringWords = []string{"check", "monitor", "view", "show", "get"}

// patternBasedIntent is the keyword-pair fallback used when the LLM is
// unavailable or produces two consecutive invalid responses. Ported
// verbatim in priority order from the original's _pattern_based_classification.
func patternBasedIntent(request string) records.Intent {
	lower := strings.ToLower(request)

	for _, p := range actionPatterns {
		if containsAll(lower, p.keywords) {
			return records.Intent{Category: p.category, Action: p.action, Confidence: p.confidence}
		}
	}
	for _, p := range monitoringPatterns {
		if containsAll(lower, p.keywords) {
			return records.Intent{Category: p.category, Action: p.action, Confidence: p.confidence}
		}
	}
	for _, p := range infoPatterns {
		if containsAll(lower, p.keywords) {
			return records.Intent{Category: p.category, Action: p.action, Confidence: p.confidence}
		}
	}
	if containsAny(lower, emergencyWords) {
		return records.Intent{Category: "automation", Action: "emergency_response", Confidence: 0.8}
	}
	if containsAny(lower, singleActionWords) {
		return records.Intent{Category: "automation", Action: "execute_command", Confidence: 0.6}
	}
	if containsAny(lower, singleMonitoringWords) {
		return records.Intent{Category: "monitoring", Action: "check_status", Confidence: 0.6}
	}
	return records.Intent{Category: "information", Action: "get_help", Confidence: 0.3}
}

func containsAll(haystack string, needles [2]string) bool {
	return strings.Contains(haystack, needles[0]) && strings.Contains(haystack, needles[1])
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
