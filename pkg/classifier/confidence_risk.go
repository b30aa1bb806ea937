package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/parser"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// scoreConfidenceAndRisk computes the merged confidence+risk assessment:
// a rule-based pass always runs; the LLM is consulted only when the rule
// confidence is below the configured low threshold or the rule risk is
// medium, in which case its output is blended 0.6*LLM + 0.4*rule for
// confidence and overrides the rule risk outright. Any LLM failure here
// degrades silently to the rule-based result.
func (c *Classifier) scoreConfidenceAndRisk(ctx context.Context, request string, intent records.Intent, entities []records.Entity) (float64, records.ConfidenceLevel, records.RiskLevel) {
	ruleConfidence := c.ruleBasedConfidence(request, intent, entities)
	ruleRisk := ruleBasedRisk(request, intent, entities)

	useLLM := ruleConfidence < c.confidenceLowThreshold || ruleRisk == records.RiskMedium

	confidence := ruleConfidence
	risk := ruleRisk

	if useLLM {
		if llmConfidence, llmRisk, ok := c.llmConfidenceAndRisk(ctx, request, intent, entities); ok {
			confidence = llmConfidence*0.6 + ruleConfidence*0.4
			risk = llmRisk
		}
	}

	return confidence, records.ConfidenceLevelFor(confidence), risk
}

func (c *Classifier) llmConfidenceAndRisk(ctx context.Context, request string, intent records.Intent, entities []records.Entity) (float64, records.RiskLevel, bool) {
	entityParts := make([]string, 0, len(entities))
	for _, e := range entities {
		entityParts = append(entityParts, fmt.Sprintf("%s:%s", e.Type, e.Value))
	}

	pair, err := c.prompts.Get(prompt.ConfidenceAndRisk, map[string]interface{}{
		"request":         request,
		"intent_category": intent.Category,
		"intent_action":   intent.Action,
		"entities_json":   strings.Join(entityParts, ", "),
		"rule_confidence": c.ruleBasedConfidence(request, intent, entities),
		"rule_risk":       string(ruleBasedRisk(request, intent, entities)),
	})
	if err != nil {
		return 0, "", false
	}

	resp, err := c.client.Generate(ctx, llm.Request{
		Prompt:      pair.User,
		System:      pair.System,
		Temperature: 0.1,
		MaxTokens:   80,
	})
	if err != nil {
		return 0, "", false
	}

	parsed, err := parser.ParseConfidenceAndRisk(resp.Text)
	if err != nil {
		return 0, "", false
	}

	risk := records.RiskLevel(parsed.Risk)
	switch risk {
	case records.RiskLow, records.RiskMedium, records.RiskHigh, records.RiskCritical:
	default:
		risk = records.RiskMedium
	}

	return parsed.Confidence, risk, true
}

// ruleBasedConfidence is the four-factor weighted blend (intent 0.3,
// top-3 entity confidence 0.3, clarity 0.2, technical-term density 0.2),
// with a simple-self-contained-question override of 0.95.
func (c *Classifier) ruleBasedConfidence(request string, intent records.Intent, entities []records.Entity) float64 {
	if isSimpleSelfContainedQuestion(request, intent) {
		return 0.95
	}

	entityFactor := 0.3
	if len(entities) > 0 {
		n := len(entities)
		if n > 3 {
			n = 3
		}
		var sum float64
		for _, e := range entities[:n] {
			sum += e.Confidence
		}
		entityFactor = sum / float64(n)
	} else if intent.Category == "information" || intent.Category == "monitoring" {
		entityFactor = 0.8
	}

	weighted := intent.Confidence*0.3 + entityFactor*0.3 + assessClarity(request)*0.2 + assessTechnicalTerms(request)*0.2
	if weighted > 1.0 {
		return 1.0
	}
	if weighted < 0.0 {
		return 0.0
	}
	return weighted
}

var mathPatterns = []string{"what is", "what's", "calculate", "compute", "solve"}
var definitionPatterns = []string{"what is", "what's", "what are", "explain", "define", "describe"}
var directQueries = []string{"help", "status", "version", "list tools", "show tools", "available tools"}

func isSimpleSelfContainedQuestion(request string, intent records.Intent) bool {
	if intent.Category != "information" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(request))

	hasMathPattern := containsAny(lower, mathPatterns)
	hasNumbers := strings.IndexFunc(request, unicode.IsDigit) >= 0
	hasMathOperators := strings.ContainsAny(request, "+-*/=")
	if hasMathPattern && hasNumbers && hasMathOperators {
		return true
	}

	hasDefinitionPattern := containsAny(lower, definitionPatterns)
	wordCount := len(strings.Fields(request))
	if hasDefinitionPattern && wordCount >= 2 && wordCount <= 6 {
		return true
	}

	for _, q := range directQueries {
		if lower == q || strings.Contains(lower, q) {
			return true
		}
	}
	return false
}

var clarityActionWords = []string{"restart", "start", "stop", "check", "show", "list", "get", "set", "update", "install", "remove", "deploy", "backup", "restore"}
var clarityTechTerms = []string{"service", "server", "database", "application", "container", "nginx", "apache", "mysql", "docker", "kubernetes"}
var vagueWords = []string{"something", "anything", "stuff", "thing", "maybe", "perhaps"}

// assessClarity scores request clarity from keyword and length heuristics.
func assessClarity(request string) float64 {
	lower := strings.ToLower(request)
	var positive, negative float64

	if containsAny(lower, clarityActionWords) {
		positive += 0.3
	}
	if containsAny(lower, clarityTechTerms) {
		positive += 0.2
	}

	wordCount := len(strings.Fields(request))
	switch {
	case wordCount >= 3 && wordCount <= 15:
		positive += 0.2
	case wordCount < 3:
		negative -= 0.2
	}

	if containsAny(lower, vagueWords) {
		negative -= 0.2
	}
	if strings.Contains(request, "?") {
		negative -= 0.1
	}
	if strings.Count(request, "!") > 1 {
		negative -= 0.1
	}

	score := 0.5 + positive + negative
	if score > 1.0 {
		return 1.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}

var techCategories = map[string][]string{
	"services":  {"nginx", "apache", "mysql", "postgresql", "redis", "mongodb"},
	"commands":  {"systemctl", "docker", "kubectl", "git", "curl", "wget"},
	"systems":   {"linux", "ubuntu", "centos", "windows", "kubernetes", "aws"},
	"protocols": {"http", "https", "ssh", "ftp", "tcp", "udp"},
	"formats":   {"json", "xml", "yaml", "csv", "log"},
}

// assessTechnicalTerms scores the diversity and quantity of technical
// terms present in request, blending a category-diversity score (0.6
// weight) with a raw term-count score (0.4 weight).
func assessTechnicalTerms(request string) float64 {
	lower := strings.ToLower(request)

	foundCategories := 0
	totalTerms := 0
	for _, terms := range techCategories {
		found := false
		for _, term := range terms {
			if strings.Contains(lower, term) {
				totalTerms++
				found = true
			}
		}
		if found {
			foundCategories++
		}
	}

	categoryScore := float64(foundCategories) / float64(len(techCategories))
	termScore := float64(totalTerms) / 5
	if termScore > 1.0 {
		termScore = 1.0
	}
	return categoryScore*0.6 + termScore*0.4
}

var criticalRiskKeywords = []string{"delete", "remove", "drop", "destroy", "purge", "wipe", "erase", "truncate"}
var highRiskContextKeywords = []string{"production", "prod", "live", "security", "firewall", "iptables", "database", "db"}
var highRiskActionKeywords = []string{"modify", "change", "update", "alter", "grant", "revoke"}
var mediumRiskKeywords = []string{"restart", "reload", "config", "configure", "install", "upgrade"}
var lowRiskKeywords = []string{"show", "list", "get", "status", "check", "view", "display", "info"}

// ruleBasedRisk classifies risk from keyword families, in the same
// priority order as the original's _calculate_rule_based_risk: destructive
// verbs first, then production+modify combinations, then production
// action intents, then service/config changes, then read-only operations.
func ruleBasedRisk(request string, intent records.Intent, entities []records.Entity) records.RiskLevel {
	lower := strings.ToLower(request)

	if containsAny(lower, criticalRiskKeywords) {
		return records.RiskCritical
	}

	hasHighRiskContext := containsAny(lower, highRiskContextKeywords)
	hasHighRiskAction := containsAny(lower, highRiskActionKeywords)
	if hasHighRiskContext && hasHighRiskAction {
		return records.RiskHigh
	}

	if isActionIntentCategory(intent.Category) && hasProductionEntity(entities) {
		return records.RiskHigh
	}

	if containsAny(lower, mediumRiskKeywords) {
		return records.RiskMedium
	}

	if isActionIntentCategory(intent.Category) {
		return records.RiskMedium
	}

	if containsAny(lower, lowRiskKeywords) {
		return records.RiskLow
	}
	if intent.Category == "information" {
		return records.RiskLow
	}

	return records.RiskMedium
}

func isActionIntentCategory(category string) bool {
	switch category {
	case "execution", "deployment", "configuration":
		return true
	}
	return false
}

func hasProductionEntity(entities []records.Entity) bool {
	for _, e := range entities {
		if e.Type == "environment" {
			v := strings.ToLower(e.Value)
			if v == "prod" || v == "production" {
				return true
			}
		}
	}
	return false
}
