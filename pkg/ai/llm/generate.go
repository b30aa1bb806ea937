package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// generateClient speaks the Ollama-style /api/generate dialect.
type generateClient struct {
	baseURL string
	model   string
	http    *http.Client
	budget  BudgetConfig
	log     *logrus.Logger
}

// NewGenerateClient builds a Client for the Ollama "generate" dialect.
func NewGenerateClient(baseURL, model string, httpClient *http.Client, budget BudgetConfig, log *logrus.Logger) Client {
	return &generateClient{baseURL: baseURL, model: model, http: httpClient, budget: budget, log: log}
}

func (c *generateClient) Model() string { return c.model }

type generateRequestBody struct {
	Model    string              `json:"model"`
	Prompt   string              `json:"prompt"`
	System   string              `json:"system,omitempty"`
	Stream   bool                `json:"stream"`
	Options  generateRequestOpts `json:"options"`
}

type generateRequestOpts struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponseBody struct {
	Response           string `json:"response"`
	Model              string `json:"model"`
	Done               bool   `json:"done"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalCount          int    `json:"eval_count"`
	DoneReason         string `json:"done_reason"`
}

func (c *generateClient) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	inputTokens := EstimateTokens(req.System + req.Prompt)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		safe, clamped := SafeMaxTokens(c.budget, inputTokens)
		maxTokens = safe
		if clamped {
			c.log.WithFields(logrus.Fields{"component": "llm", "dialect": "generate"}).
				Warn("clamped max_tokens to hard minimum")
		}
	}

	body := generateRequestBody{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: generateRequestOpts{
			Temperature: req.Temperature,
			NumPredict:  maxTokens,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Response{}, &ConnectionError{Endpoint: c.baseURL, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &ConnectionError{Endpoint: c.baseURL, Cause: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &GenerationError{
			Endpoint: c.baseURL,
			Cause:    fmt.Errorf("status %d: %s", resp.StatusCode, string(rawBody)),
		}
	}

	var out generateResponseBody
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: err}
	}

	return Response{
		Text:             out.Response,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
		FinishReason:     out.DoneReason,
		Model:            out.Model,
		Latency:          time.Since(start),
	}, nil
}

func (c *generateClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return &ConnectionError{Endpoint: c.baseURL, Cause: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &ConnectionError{Endpoint: c.baseURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ConnectionError{Endpoint: c.baseURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}
