package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opsconductor/decisionpipeline/internal/config"
	"github.com/opsconductor/decisionpipeline/pkg/ai/llm"
	"github.com/opsconductor/decisionpipeline/pkg/ai/prompt"
	"github.com/opsconductor/decisionpipeline/pkg/classifier"
	"github.com/opsconductor/decisionpipeline/pkg/metrics"
	"github.com/opsconductor/decisionpipeline/pkg/notification"
	"github.com/opsconductor/decisionpipeline/pkg/orchestrator"
	"github.com/opsconductor/decisionpipeline/pkg/pipeline/pipelineerr"
	"github.com/opsconductor/decisionpipeline/pkg/planner"
	"github.com/opsconductor/decisionpipeline/pkg/selector"
	"github.com/opsconductor/decisionpipeline/pkg/selector/policy"
	"github.com/opsconductor/decisionpipeline/pkg/toolindex"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var metricsPort string

	rootCmd := &cobra.Command{
		Use:           "decisionpipeline",
		Short:         "Run the ops-automation decision pipeline against a single request",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&metricsPort, "metrics-port", "", "If set, serve /metrics and /health on this port while running")

	runCmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Classify, select tools for, and plan a single natural-language request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging)

			var metricsServer *metrics.Server
			if metricsPort != "" {
				metricsServer = metrics.NewServer(metricsPort, log)
				metricsServer.StartAsync()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metricsServer.Stop(ctx)
				}()
			}

			o, err := buildOrchestrator(cfg, log)
			if err != nil {
				return fmt.Errorf("wire pipeline: %w", err)
			}

			ctx := cmd.Context()
			if cfg.Pipeline.RequestDeadline > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RequestDeadline)
				defer cancel()
			}

			request := strings.Join(args, " ")
			result, err := o.Process(ctx, request, nil)
			if err != nil {
				var perr *pipelineerr.Error
				if errors.As(err, &perr) {
					log.WithFields(logrus.Fields{
						"stage": perr.Stage,
						"kind":  perr.Kind,
					}).Error("pipeline request failed")
				}
				return err
			}

			return printResult(cmd, result)
		},
	}

	healthCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Report readiness of the LLM backend each stage depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging)

			o, err := buildOrchestrator(cfg, log)
			if err != nil {
				return fmt.Errorf("wire pipeline: %w", err)
			}

			health := o.HealthCheck(cmd.Context())
			out, err := json.MarshalIndent(health, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !health.Classifier.Healthy || !health.Selector.Healthy || !health.Planner.Healthy {
				return errors.New("one or more stages are unhealthy")
			}
			return nil
		},
	}

	configValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
			return nil
		},
	}
	configCmd := &cobra.Command{Use: "config", Short: "Configuration utilities"}
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(runCmd, healthCmd, configCmd)
	return rootCmd
}

// buildOrchestrator wires one Orchestrator from a loaded Config: the LLM
// adapter, the tool index/catalog (memory or Redis-backed, per
// cfg.ToolIndex.Backend), the policy engine, and the three stages.
func buildOrchestrator(cfg *config.Config, log *logrus.Logger) (*orchestrator.Orchestrator, error) {
	client, err := llm.NewClient(cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("build LLM client: %w", err)
	}

	catalog := toolindex.NewStaticCatalog(toolindex.DefaultTools())

	var index toolindex.ToolIndex
	switch cfg.ToolIndex.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.ToolIndex.RedisAddr})
		index = toolindex.NewRedisIndex(rdb, "decisionpipeline")
	default:
		index = toolindex.NewMemoryIndex(catalog.Rows())
	}

	embedder := toolindex.NewHashEmbedder(cfg.Embedding.Dimensions)

	ctx := context.Background()
	engine, err := policy.NewEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("build policy engine: %w", err)
	}

	budget := toolindex.BudgetConfig{
		ContextWindow: cfg.LLM.ContextWindow,
		BaseTokens:    cfg.ToolIndex.BaseTokens,
		OutputReserve: cfg.LLM.OutputReserve,
		TokensPerRow:  cfg.ToolIndex.TokensPerRowEstimate,
	}

	registry := prompt.NewRegistry()

	c := classifier.New(client, registry, log, float64(cfg.Pipeline.ConfidenceLowThreshold))
	s := selector.New(client, registry, index, embedder, catalog, engine, budget, log)
	p := planner.New(client, registry, log)

	var notifier *notification.Notifier
	if cfg.Notification.Enabled {
		notifier = notification.New(cfg.Notification.SlackToken, cfg.Notification.Channel, log)
	} else {
		notifier = notification.New("", "", log)
	}

	return orchestrator.New(c, s, p, notifier, log), nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func printResult(cmd *cobra.Command, result *orchestrator.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
