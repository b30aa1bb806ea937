package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
llm:
  dialect: "chat_completions"
  base_url: "http://localhost:8000"
  model: "qwen2.5-7b"
  timeout: "45s"
  retry_count: 2
  temperature: 0.2
  context_window: 16384
  output_reserve: 1200
  safety_margin: 50

embedding:
  base_url: "http://localhost:8001"
  model: "bge-small"
  dimensions: 384
  timeout: "5s"

tool_index:
  backend: "redis"
  redis_addr: "localhost:6379"
  token_budget: 3000

pipeline:
  confidence_low_threshold: 0.5
  default_max_execution_time_s: 300
  extended_max_execution_time_s: 600
  extended_tool_count_threshold: 3

logging:
  level: "debug"
  format: "json"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.LLM.Dialect).To(Equal("chat_completions"))
				Expect(cfg.LLM.BaseURL).To(Equal("http://localhost:8000"))
				Expect(cfg.LLM.Model).To(Equal("qwen2.5-7b"))
				Expect(cfg.LLM.Timeout).To(Equal(45 * time.Second))
				Expect(cfg.LLM.RetryCount).To(Equal(2))
				Expect(cfg.LLM.Temperature).To(Equal(float32(0.2)))
				Expect(cfg.LLM.ContextWindow).To(Equal(16384))

				Expect(cfg.Embedding.Model).To(Equal("bge-small"))
				Expect(cfg.Embedding.Dimensions).To(Equal(384))

				Expect(cfg.ToolIndex.Backend).To(Equal("redis"))
				Expect(cfg.ToolIndex.RedisAddr).To(Equal("localhost:6379"))
				Expect(cfg.ToolIndex.TokenBudget).To(Equal(3000))

				Expect(cfg.Pipeline.ConfidenceLowThreshold).To(Equal(float32(0.5)))
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
llm:
  model: "llama3"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.LLM.Model).To(Equal("llama3"))
				Expect(cfg.LLM.Dialect).To(Equal("generate"))
				Expect(cfg.LLM.BaseURL).To(Equal("http://localhost:11434"))
				Expect(cfg.ToolIndex.Backend).To(Equal("memory"))
				Expect(cfg.Pipeline.DefaultMaxExecutionTimeS).To(Equal(300))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
llm:
  model: [
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = defaultConfig()
			cfg.LLM.Model = "llama3"
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(cfg)).NotTo(HaveOccurred())
			})
		})

		Context("when LLM dialect is invalid", func() {
			BeforeEach(func() { cfg.LLM.Dialect = "carrier-pigeon" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported LLM dialect"))
			})
		})

		Context("when LLM model is missing", func() {
			BeforeEach(func() { cfg.LLM.Model = "" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("LLM model is required"))
			})
		})

		Context("when LLM temperature is out of range", func() {
			BeforeEach(func() { cfg.LLM.Temperature = 1.5 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("temperature must be between"))
			})
		})

		Context("when tool index backend is redis without an address", func() {
			BeforeEach(func() {
				cfg.ToolIndex.Backend = "redis"
				cfg.ToolIndex.RedisAddr = ""
			})

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("redis_addr is required"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{}
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("LLM_BASE_URL", "http://test:8080")
				os.Setenv("LLM_MODEL", "test-model")
				os.Setenv("TOOL_INDEX_BACKEND", "redis")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("NOTIFICATION_ENABLED", "true")
			})

			It("should load values from environment", func() {
				Expect(loadFromEnv(cfg)).NotTo(HaveOccurred())

				Expect(cfg.LLM.BaseURL).To(Equal("http://test:8080"))
				Expect(cfg.LLM.Model).To(Equal("test-model"))
				Expect(cfg.ToolIndex.Backend).To(Equal("redis"))
				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Notification.Enabled).To(BeTrue())
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				original := *cfg
				Expect(loadFromEnv(cfg)).NotTo(HaveOccurred())
				Expect(*cfg).To(Equal(original))
			})
		})
	})
})

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}
