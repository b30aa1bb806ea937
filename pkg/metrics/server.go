package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes /metrics and /health over HTTP for scraping and
// liveness checks, started asynchronously and stopped gracefully.
type Server struct {
	server *http.Server
	log    *logrus.Logger
}

// NewServer builds a metrics server bound to ":<port>".
func NewServer(port string, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: mux,
		},
		log: log,
	}
}

// StartAsync starts the server on a background goroutine. A bind failure
// is logged, not returned, since the server is meant to run detached for
// the life of the process.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
