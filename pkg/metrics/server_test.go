package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("8080", logger)

	assert.NotNil(t, server)
	assert.NotNil(t, server.server)
	assert.Equal(t, ":8080", server.server.Addr)
	assert.NotNil(t, server.log)
}

func TestServerMetricsEndpoint(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("19091", logger)
	server.StartAsync()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://localhost:19091/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	bodyStr := string(body)
	assert.Contains(t, bodyStr, "# HELP")
	assert.Contains(t, bodyStr, "# TYPE")
}

func TestServerHealthEndpoint(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("19092", logger)
	server.StartAsync()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://localhost:19092/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestServerStop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	server := NewServer("19093", logger)
	server.StartAsync()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}
