// Package http builds *http.Client instances with explicit timeout and
// connection-pool settings, rather than relying on http.DefaultClient's
// unbounded defaults. Every outbound integration (LLM backend, embedder,
// Slack, Prometheus) gets a client shaped for its own latency profile.
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig controls the transport behind a constructed *http.Client.
type ClientConfig struct {
	Timeout                time.Duration
	MaxRetries             int
	DisableSSLVerification bool
	MaxIdleConns           int
	IdleConnTimeout        time.Duration
	TLSHandshakeTimeout    time.Duration
	ResponseHeaderTimeout  time.Duration
}

// DefaultClientConfig returns a conservative general-purpose configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		DisableSSLVerification: false,
		MaxIdleConns:           10,
		IdleConnTimeout:        90 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
	}
}

// NewClient builds an *http.Client from an explicit configuration.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}
	if config.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout builds a client with the default pool settings but
// a caller-supplied timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.Timeout = timeout
	return NewClient(config)
}

// NewDefaultClient builds a client from DefaultClientConfig().
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// SlackClientConfig returns a short-timeout, low-retry configuration
// suited to Slack's webhook API.
func SlackClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 10 * time.Second
	config.MaxRetries = 2
	return config
}

// PrometheusClientConfig returns a configuration scaled to a caller-chosen
// scrape/push timeout, with the response-header timeout set to a third of
// the overall budget so a slow TTFB doesn't consume the whole timeout.
func PrometheusClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 2
	return config
}

// LLMClientConfig returns a configuration suited to LLM backends: a large
// overall timeout (generation is slow) split so the response-header
// timeout only bounds time-to-first-byte, and a connection pool sized to
// the adapter's bounded concurrency (20 idle / 50 max, per the adapter's
// own transport — this config only governs the client-level timeout
// split, pool sizing lives in pkg/ai/llm where the transport is built
// directly).
func LLMClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.ResponseHeaderTimeout = timeout / 3
	config.MaxIdleConns = 20
	return config
}
