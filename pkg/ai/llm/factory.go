package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/opsconductor/decisionpipeline/internal/config"
)

// newPooledTransport returns an http.Transport bounded the way the
// original adapters bound their connection pools: a modest number of
// idle connections kept warm per host, and a hard ceiling on concurrent
// connections so a slow backend can't let goroutines pile up unbounded.
func newPooledTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
	}
}

// breakerClient wraps a dialect Client with a circuit breaker so a run
// of failures trips the breaker and fails fast instead of piling up
// slow timeouts against a backend that is already down.
type breakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds the Client for cfg.Dialect, with a bounded connection
// pool and a circuit breaker wrapped around Generate and HealthCheck.
func NewClient(cfg config.LLMConfig, log *logrus.Logger) (Client, error) {
	httpClient := &http.Client{
		Transport: newPooledTransport(),
		Timeout:   cfg.Timeout,
	}

	budget := BudgetConfig{
		ContextWindow: cfg.ContextWindow,
		OutputReserve: cfg.OutputReserve,
		SafetyMargin:  cfg.SafetyMargin,
		MinOutputHard: cfg.MinOutputHard,
	}

	var inner Client
	switch Dialect(cfg.Dialect) {
	case DialectChatCompletions:
		inner = NewChatCompletionsClient(cfg.BaseURL, cfg.Model, httpClient, budget, log)
	default:
		inner = NewGenerateClient(cfg.BaseURL, cfg.Model, httpClient, budget, log)
	}

	breakerSettings := gobreaker.Settings{
		Name:        "llm-" + cfg.Dialect,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"component": "llm", "breaker": name}).
				Warnf("circuit breaker state change: %s -> %s", from, to)
		},
	}

	return &breakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
	}, nil
}

func (c *breakerClient) Model() string { return c.inner.Model() }

func (c *breakerClient) Generate(ctx context.Context, req Request) (Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Generate(ctx, req)
	})
	if err != nil {
		if resp, ok := result.(Response); ok {
			return resp, err
		}
		return Response{}, err
	}
	return result.(Response), nil
}

func (c *breakerClient) HealthCheck(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.HealthCheck(ctx)
	})
	return err
}
