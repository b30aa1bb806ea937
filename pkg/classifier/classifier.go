// Package classifier implements the C4 Stage A classifier: intent
// classification, entity extraction, and merged confidence/risk scoring,
// composed into a Decision. Grounded on original_source/pipeline/stages/
// stage_a/classifier.go's StageAClassifier.classify orchestration.
package classifier

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/records"
)

const stageName = "stage_a"

// Health reports the classifier's own state and that of its LLM backend.
type Health struct {
	Stage     string
	Healthy   bool
	LLMHealthy bool
}

// Capabilities describes what this classifier instance supports, mirroring
// the original's get_capabilities introspection.
type Capabilities struct {
	Stage               string
	SupportedCategories []string
	SupportedEntityTypes []string
}

// BatchResult pairs one batch request with its outcome: process_batch in
// the original lets one failed request carry its own error without
// aborting the whole batch.
type BatchResult struct {
	Request  string
	Decision *records.Decision
	Err      error
}

// Classifier runs the Stage A pipeline.
type Classifier struct {
	client   llm.Client
	prompts  *prompt.Registry
	log      *logrus.Logger
	confidenceLowThreshold float64
}

// New builds a Classifier backed by client for its LLM calls.
func New(client llm.Client, prompts *prompt.Registry, log *logrus.Logger, confidenceLowThreshold float64) *Classifier {
	return &Classifier{client: client, prompts: prompts, log: log, confidenceLowThreshold: confidenceLowThreshold}
}

// Classify runs the full Stage A pipeline for a single request: intent
// classification and entity extraction run concurrently under a shared
// errgroup cancellation scope; confidence/risk scoring begins only once
// both complete. Ctx cancellation aborts in-flight LLM calls and returns
// a Cancelled error without producing a partial Decision.
func (c *Classifier) Classify(ctx context.Context, request string, reqContext map[string]interface{}) (*records.Decision, error) {
	start := time.Now()

	var intent records.Intent
	var entities []records.Entity

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		result, err := c.classifyIntent(gctx, request)
		if err != nil {
			return err
		}
		intent = result
		return nil
	})
	group.Go(func() error {
		result, err := c.extractEntities(gctx, request)
		if err != nil {
			return err
		}
		entities = result
		return nil
	})

	err := group.Wait()
	if ctx.Err() != nil {
		return nil, pipelineerr.Wrap(pipelineerr.Cancelled, stageName, "classification cancelled", ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	confidence, confidenceLevel, riskLevel := c.scoreConfidenceAndRisk(ctx, request, intent, entities)

	decisionType := records.DecisionTypeAction
	if intent.Category == "information" {
		decisionType = records.DecisionTypeInfo
	}

	nextStage := determineNextStage(intent, confidence)

	decision := &records.Decision{
		ID:               records.NewDecisionID(time.Now()),
		SchemaVersion:    "v1",
		Request:          request,
		Type:             decisionType,
		Intent:           intent,
		Entities:         records.DedupEntities(entities),
		Confidence:       confidence,
		ConfidenceLevel:  confidenceLevel,
		RiskLevel:        riskLevel,
		Context:          reqContext,
		RequiresApproval: records.RequiresApprovalFor(riskLevel, confidenceLevel, decisionType),
		NextStage:        nextStage,
		CreatedAt:        time.Now(),
	}

	if err := decision.Validate(); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SchemaError, stageName, "assembled decision failed validation", err)
	}

	c.log.WithFields(logrus.Fields{
		"component":   "classifier",
		"duration_ms": time.Since(start).Milliseconds(),
		"decision_id": decision.ID,
	}).Debug("stage A classification complete")

	return decision, nil
}

// determineNextStage routes simple, high-confidence information queries
// directly to stage_d (skipping tool selection and planning); everything
// else proceeds to stage_ab.
func determineNextStage(intent records.Intent, confidence float64) string {
	if intent.Category != "information" {
		return "stage_ab"
	}
	switch intent.Action {
	case "query", "list", "count", "show", "get":
		if confidence >= 0.7 {
			return "stage_d"
		}
	}
	return "stage_ab"
}

// HealthCheck reports the classifier's and its LLM backend's health.
func (c *Classifier) HealthCheck(ctx context.Context) Health {
	err := c.client.HealthCheck(ctx)
	return Health{Stage: stageName, Healthy: err == nil, LLMHealthy: err == nil}
}

// GetCapabilities mirrors the original's get_capabilities introspection.
func (c *Classifier) GetCapabilities() Capabilities {
	return Capabilities{
		Stage:                stageName,
		SupportedCategories:  []string{"service_management", "file_management", "network_management", "system_information", "configuration_management", "information"},
		SupportedEntityTypes: supportedEntityTypes(),
	}
}

// ClassifyBatch processes requests sequentially; one request's failure is
// carried in its own BatchResult and does not abort the batch, mirroring
// process_batch in the original.
func (c *Classifier) ClassifyBatch(ctx context.Context, requests []string, reqContext map[string]interface{}) []BatchResult {
	results := make([]BatchResult, 0, len(requests))
	for _, request := range requests {
		decision, err := c.Classify(ctx, request, reqContext)
		results = append(results, BatchResult{Request: request, Decision: decision, Err: err})
	}
	return results
}
