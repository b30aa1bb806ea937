package classifier

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/parser"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

// regexPattern is one (pattern, base confidence) rule for an entity type.
type regexPattern struct {
	re         *regexp.Regexp
	confidence float64
}

// entityPatterns ports the original's regex_patterns table verbatim in
// semantics: hostnames (FQDN, IPv4), common services, systemd units,
// command patterns, POSIX/Windows paths, ports, and environment tokens.
var entityPatterns = map[string][]regexPattern{
	"hostname": {
		{regexp.MustCompile(`(?i)\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`), 0.9},
		{regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), 0.95},
	},
	"service": {
		{regexp.MustCompile(`(?i)\b(?:nginx|apache|httpd|mysql|postgresql|postgres|redis|mongodb|docker|kubernetes|k8s)\b`), 0.95},
		{regexp.MustCompile(`(?i)\b[a-zA-Z0-9_-]+\.service\b`), 0.9},
	},
	"command": {
		{regexp.MustCompile(`(?i)\b(?:systemctl|service|docker|kubectl|git|npm|pip|apt|yum|curl|wget)\s+\S+`), 0.9},
	},
	"file_path": {
		{regexp.MustCompile(`(?:/[^/\s]+)+/?`), 0.8},
		{regexp.MustCompile(`[A-Za-z]:\\(?:[^\\/:*?"<>|\r\n]+\\)*[^\\/:*?"<>|\r\n]*`), 0.8},
	},
	"port": {
		{regexp.MustCompile(`(?i)\b(?:port\s+)?(\d{1,5})\b`), 0.9},
		{regexp.MustCompile(`:(\d{1,5})\b`), 0.85},
	},
	"environment": {
		{regexp.MustCompile(`(?i)\b(?:prod|production|staging|stage|dev|development|test|testing)\b`), 0.9},
	},
}

// supportedEntityTypes mirrors get_supported_entity_types.
func supportedEntityTypes() []string {
	return []string{"hostname", "service", "command", "file_path", "port", "environment", "application", "database"}
}

// extractEntities runs the LLM entity-extraction call and the regex
// extractor, then merges both result sets by (type, lowercased value),
// keeping the higher-confidence occurrence on a tie per the dedup
// invariant. An LLM failure here degrades silently to the regex-only
// result, per §4.5's failure semantics for steps 2-3.
func (c *Classifier) extractEntities(ctx context.Context, request string) ([]records.Entity, error) {
	llmEntities := c.extractEntitiesWithLLM(ctx, request)
	regexEntities := extractEntitiesWithRegex(request)

	merged := append(llmEntities, regexEntities...)
	return records.DedupEntities(merged), nil
}

func (c *Classifier) extractEntitiesWithLLM(ctx context.Context, request string) []records.Entity {
	pair, err := c.prompts.Get(prompt.EntityExtraction, map[string]interface{}{"request": request})
	if err != nil {
		return nil
	}

	resp, err := c.client.Generate(ctx, llm.Request{
		Prompt:      pair.User,
		System:      pair.System,
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return nil
	}

	parsed, err := parser.ParseEntities(resp.Text)
	if err != nil {
		return nil
	}

	out := make([]records.Entity, 0, len(parsed))
	for _, e := range parsed {
		out = append(out, records.Entity{Type: e.Type, Value: e.Value, Confidence: e.Confidence})
	}
	return out
}

func extractEntitiesWithRegex(request string) []records.Entity {
	var out []records.Entity

	for entityType, patterns := range entityPatterns {
		for _, p := range patterns {
			matches := p.re.FindAllStringSubmatch(request, -1)
			for _, m := range matches {
				value := m[0]
				if len(m) > 1 && m[1] != "" {
					value = m[1]
				}
				value = strings.TrimSpace(value)
				if value == "" {
					continue
				}
				out = append(out, records.Entity{
					Type:       entityType,
					Value:      value,
					Confidence: adjustConfidence(entityType, value, request, p.confidence),
				})
			}
		}
	}
	return out
}

// adjustConfidence boosts or collapses a regex match's base confidence
// based on surrounding context, per the original's _adjust_confidence.
func adjustConfidence(entityType, value, context string, base float64) float64 {
	lower := strings.ToLower(context)

	switch entityType {
	case "service":
		if containsAny(lower, []string{"restart", "start", "stop", "status"}) {
			return minFloat(1.0, base+0.1)
		}
	case "hostname":
		if containsAny(lower, []string{"server", "host", "machine", "node"}) {
			return minFloat(1.0, base+0.1)
		}
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return 0.1
		}
	}
	return base
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
