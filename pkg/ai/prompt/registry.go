// Package prompt implements the C2 prompt registry: a closed set of
// {system, user} template pairs keyed by Kind, with strict named-parameter
// substitution. Grounded on original_source/classifier/classifier.py and
// original_source/selector/combined_selector.py, which each build their
// prompts from fixed template strings with a documented output schema.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

// Kind is a closed enum of prompt purposes. There is no escape hatch for
// an ad-hoc kind: every caller asks the registry for one of these.
type Kind string

const (
	IntentClassification Kind = "intent_classification"
	EntityExtraction     Kind = "entity_extraction"
	ConfidenceAndRisk     Kind = "confidence_and_risk"
	ToolSelection         Kind = "tool_selection"
	Planning              Kind = "planning"
)

// Pair is the rendered {system, user} message pair for one Get call.
type Pair struct {
	System string
	User   string
}

type templatePair struct {
	system *template.Template
	user   *template.Template
}

// Registry renders the fixed prompt templates for each Kind. It is safe
// for concurrent use: templates are parsed once at construction and Get
// only ever executes them against caller-supplied variables.
type Registry struct {
	templates map[Kind]templatePair
}

// NewRegistry parses the built-in template set. A parse error here is a
// programming bug (a malformed constant template), so NewRegistry panics
// rather than returning an error the caller can't meaningfully recover
// from.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[Kind]templatePair, len(builtinTemplates))}
	for kind, pair := range builtinTemplates {
		r.templates[kind] = templatePair{
			system: mustParse(string(kind)+".system", pair.system),
			user:   mustParse(string(kind)+".user", pair.user),
		}
	}
	return r
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

// Get renders the system and user templates for kind against vars. It
// fails at call time, not at registry-construction time, if vars is
// missing a variable the template references — text/template's
// missingkey=error surfaces that as an execution error.
func (r *Registry) Get(kind Kind, vars map[string]interface{}) (Pair, error) {
	pair, ok := r.templates[kind]
	if !ok {
		return Pair{}, fmt.Errorf("prompt: unknown kind %q", kind)
	}

	var systemBuf, userBuf bytes.Buffer
	if err := pair.system.Execute(&systemBuf, vars); err != nil {
		return Pair{}, fmt.Errorf("prompt: rendering %s system template: %w", kind, err)
	}
	if err := pair.user.Execute(&userBuf, vars); err != nil {
		return Pair{}, fmt.Errorf("prompt: rendering %s user template: %w", kind, err)
	}

	return Pair{System: systemBuf.String(), User: userBuf.String()}, nil
}
