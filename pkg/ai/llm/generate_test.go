package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBudget() BudgetConfig {
	return BudgetConfig{ContextWindow: 8192, OutputReserve: 1500, SafetyMargin: 40, MinOutputHard: 256}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestGenerateClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body generateRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body.Model)
		assert.Equal(t, "restart nginx", body.Prompt)
		assert.False(t, body.Stream)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponseBody{
			Response:        `{"intent": "restart"}`,
			Model:           "llama3",
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       8,
			DoneReason:      "stop",
		})
	}))
	defer server.Close()

	client := NewGenerateClient(server.URL, "llama3", server.Client(), testBudget(), testLogger())

	resp, err := client.Generate(context.Background(), Request{Prompt: "restart nginx", Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"intent": "restart"}`, resp.Text)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 8, resp.CompletionTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestGenerateClientGenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := NewGenerateClient(server.URL, "llama3", server.Client(), testBudget(), testLogger())

	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestGenerateClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewGenerateClient(server.URL, "llama3", server.Client(), testBudget(), testLogger())
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestGenerateClientHealthCheckUnreachable(t *testing.T) {
	client := NewGenerateClient("http://127.0.0.1:1", "llama3", http.DefaultClient, testBudget(), testLogger())
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestGenerateClientModel(t *testing.T) {
	client := NewGenerateClient("http://example.invalid", "mistral", http.DefaultClient, testBudget(), testLogger())
	assert.Equal(t, "mistral", client.Model())
}
