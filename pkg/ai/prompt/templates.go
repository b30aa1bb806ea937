package prompt

type rawPair struct {
	system string
	user   string
}

// builtinTemplates holds the fixed template text for each Kind. Every
// user template documents the exact JSON shape the LLM must return, so
// pkg/ai/parser has a stable contract to validate against.
var builtinTemplates = map[Kind]rawPair{
	IntentClassification: {
		system: `You classify an operator's natural-language request into an intent.
Respond with JSON only, matching exactly this shape:
{"category": string, "action": string, "confidence": number 0..1, "capabilities": [string]}
category is one of: service_management, file_management, network_management,
system_information, configuration_management, information. action is a short
verb phrase. capabilities may be empty. Do not include any text outside the
JSON object.`,
		user: `Request: {{.request}}
{{if .context}}Context: {{.context}}
{{end}}Classify this request.`,
	},
	EntityExtraction: {
		system: `You extract structured entities from an operator's request.
Respond with JSON only, matching exactly this shape:
{"entities": [{"type": string, "value": string, "confidence": number 0..1}]}
type is one of: hostname, service, port, path, command, environment. An
empty entities list is valid when nothing is mentioned. Do not include any
text outside the JSON object.`,
		user: `Request: {{.request}}
Extract all entities mentioned.`,
	},
	ConfidenceAndRisk: {
		system: `You review a rule-based confidence and risk estimate and refine it.
Respond with JSON only, matching exactly this shape:
{"confidence": number 0..1, "risk": "low"|"medium"|"high"|"critical", "reasoning": string}
Weigh the rule-based estimate heavily; only diverge when the request text
clearly warrants it. Do not include any text outside the JSON object.`,
		user: `Request: {{.request}}
Intent: {{.intent_category}}/{{.intent_action}}
Entities: {{.entities_json}}
Rule-based confidence: {{.rule_confidence}}
Rule-based risk: {{.rule_risk}}
Provide your refined confidence and risk.`,
	},
	ToolSelection: {
		system: `You select the fewest tools that satisfy an operator's request from a
provided candidate list. Prefer broader coverage over many narrow tools.
An empty selection is permitted when no tool is needed to answer.
Respond with JSON only, matching exactly this shape:
{"intent": string, "entities": [{"type": string, "value": string, "confidence": number}],
"select": [{"id": string, "why": string}], "confidence": number 0..1,
"risk_level": "low"|"medium"|"high"|"critical", "reasoning": string}
Only select ids that appear in the candidate list below. Do not include
any text outside the JSON object.`,
		user: `Request: {{.request}}
Candidate tools (JSON): {{.candidates_json}}
Select the tools needed.`,
	},
	Planning: {
		system: `You generate an ordered execution plan from a decision and a tool
selection. Use only the asset/catalog fields below; select only the
fields your plan actually needs.
Catalog fields available: {{.catalog_fields}}
Respond with a JSON array only, where each element has exactly this shape:
{"tool": string, "description": string, "inputs": object,
"preconditions": [string], "success_criteria": [string],
"failure_handling": string, "estimated_duration_s": number,
"depends_on": [string]}
depends_on entries may be step indices (as strings) or shell-style
wildcard patterns. Do not include any text outside the JSON array.`,
		user: `Original request: {{.request}}
Intent: {{.intent_category}}/{{.intent_action}}
Entities: {{.entities_json}}
Selected tools (JSON): {{.selected_tools_json}}
{{if .sop_snippets}}Relevant procedure snippets: {{.sop_snippets}}
{{end}}Generate the execution plan.`,
	},
}
