// Package config loads the decision pipeline's YAML configuration file,
// applies environment-variable overrides, fills defaults, and validates
// the result — the same Load/loadFromEnv/validate shape the rest of the
// pack uses for its own service configs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig configures the C1 adapter's backend connection.
type LLMConfig struct {
	Dialect       string        `yaml:"dialect"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryCount    int           `yaml:"retry_count"`
	Temperature   float32       `yaml:"temperature"`
	ContextWindow int           `yaml:"context_window"`
	OutputReserve int           `yaml:"output_reserve"`
	SafetyMargin  int           `yaml:"safety_margin"`
	MinOutputHard int           `yaml:"min_output_hard"`
}

// EmbeddingConfig configures the embedding backend used by Stage AB's
// retrieval step.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ToolIndexConfig configures the C5 tool catalog/index.
type ToolIndexConfig struct {
	Backend              string `yaml:"backend"` // "memory" or "redis"
	RedisAddr            string `yaml:"redis_addr"`
	TokenBudget          int    `yaml:"token_budget"`
	TokensPerRowEstimate int    `yaml:"tokens_per_row_estimate"`
	BaseTokens           int    `yaml:"base_tokens"`
}

// PipelineConfig configures cross-stage thresholds.
type PipelineConfig struct {
	ConfidenceLowThreshold     float32       `yaml:"confidence_low_threshold"`
	DefaultMaxExecutionTimeS   int           `yaml:"default_max_execution_time_s"`
	ExtendedMaxExecutionTimeS  int           `yaml:"extended_max_execution_time_s"`
	ExtendedToolCountThreshold int           `yaml:"extended_tool_count_threshold"`
	RequestDeadline            time.Duration `yaml:"request_deadline"`
}

// NotificationConfig configures the optional Slack approval-flag hook.
type NotificationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SlackToken string `yaml:"slack_token"`
	Channel    string `yaml:"channel"`
}

// LoggingConfig configures the ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full pipeline configuration.
type Config struct {
	LLM          LLMConfig           `yaml:"llm"`
	Embedding    EmbeddingConfig     `yaml:"embedding"`
	ToolIndex    ToolIndexConfig     `yaml:"tool_index"`
	Pipeline     PipelineConfig      `yaml:"pipeline"`
	Notification NotificationConfig  `yaml:"notification"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// Load reads and parses the YAML file at path, applies environment
// overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Dialect:       "generate",
			Timeout:       60 * time.Second,
			RetryCount:    1,
			Temperature:   0.1,
			ContextWindow: 8192,
			OutputReserve: 1500,
			SafetyMargin:  40,
			MinOutputHard: 256,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 384,
			Timeout:    10 * time.Second,
		},
		ToolIndex: ToolIndexConfig{
			Backend:              "memory",
			TokenBudget:          2000,
			TokensPerRowEstimate: 40,
			BaseTokens:           1500,
		},
		Pipeline: PipelineConfig{
			ConfidenceLowThreshold:     0.6,
			DefaultMaxExecutionTimeS:   300,
			ExtendedMaxExecutionTimeS:  600,
			ExtendedToolCountThreshold: 3,
			RequestDeadline:            30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Dialect {
	case "generate", "chat_completions":
	default:
		return fmt.Errorf("unsupported LLM dialect: %s", cfg.LLM.Dialect)
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}

	if cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model is required")
	}

	if cfg.LLM.Temperature < 0.0 || cfg.LLM.Temperature > 1.0 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0")
	}

	if cfg.LLM.ContextWindow <= 0 {
		return fmt.Errorf("LLM context window must be greater than 0")
	}

	if cfg.ToolIndex.Backend != "memory" && cfg.ToolIndex.Backend != "redis" {
		return fmt.Errorf("unsupported tool index backend: %s", cfg.ToolIndex.Backend)
	}

	if cfg.ToolIndex.Backend == "redis" && cfg.ToolIndex.RedisAddr == "" {
		return fmt.Errorf("tool index redis_addr is required when backend is redis")
	}

	if cfg.Pipeline.ConfidenceLowThreshold < 0.0 || cfg.Pipeline.ConfidenceLowThreshold > 1.0 {
		return fmt.Errorf("pipeline confidence_low_threshold must be between 0.0 and 1.0")
	}

	if cfg.Pipeline.DefaultMaxExecutionTimeS <= 0 {
		return fmt.Errorf("pipeline default_max_execution_time_s must be greater than 0")
	}

	return nil
}

// loadFromEnv overlays a small set of operationally-common settings from
// the environment, mirroring the pack's convention of allowing a deployed
// container to override a few hot settings without editing the mounted
// YAML file.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_DIALECT"); v != "" {
		cfg.LLM.Dialect = v
	}
	if v := os.Getenv("TOOL_INDEX_BACKEND"); v != "" {
		cfg.ToolIndex.Backend = v
	}
	if v := os.Getenv("TOOL_INDEX_REDIS_ADDR"); v != "" {
		cfg.ToolIndex.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NOTIFICATION_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFICATION_ENABLED value: %w", err)
		}
		cfg.Notification.Enabled = enabled
	}
	if v := os.Getenv("SLACK_TOKEN"); v != "" {
		cfg.Notification.SlackToken = v
	}
	return nil
}
