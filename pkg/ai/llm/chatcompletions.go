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

// chatCompletionsClient speaks the OpenAI-compatible /v1/chat/completions
// dialect, as served by vLLM and similar inference servers.
type chatCompletionsClient struct {
	baseURL string
	model   string
	http    *http.Client
	budget  BudgetConfig
	log     *logrus.Logger
}

// NewChatCompletionsClient builds a Client for the OpenAI-compatible
// chat-completions dialect.
func NewChatCompletionsClient(baseURL, model string, httpClient *http.Client, budget BudgetConfig, log *logrus.Logger) Client {
	return &chatCompletionsClient{baseURL: baseURL, model: model, http: httpClient, budget: budget, log: log}
}

func (c *chatCompletionsClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequestBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionsResponseBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *chatCompletionsClient) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	inputTokens := EstimateTokens(req.System + req.Prompt)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		safe, clamped := SafeMaxTokens(c.budget, inputTokens)
		maxTokens = safe
		if clamped {
			c.log.WithFields(logrus.Fields{"component": "llm", "dialect": "chat_completions"}).
				Warn("clamped max_tokens to hard minimum")
		}
	}

	body := chatCompletionsRequestBody{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
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

	var out chatCompletionsResponseBody
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: err}
	}
	if len(out.Choices) == 0 {
		return Response{}, &GenerationError{Endpoint: c.baseURL, Cause: fmt.Errorf("response contained no choices")}
	}

	return Response{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		FinishReason:     out.Choices[0].FinishReason,
		Model:            out.Model,
		Latency:          time.Since(start),
	}, nil
}

func (c *chatCompletionsClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
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
