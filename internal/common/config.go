package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Freshness   FreshnessConfig `toml:"freshness"`
	Executor    ExecutorConfig  `toml:"executor"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Collector   CollectorConfig `toml:"collector"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	LLM         LLMConfig       `toml:"llm"`
	Report      ReportConfig    `toml:"report"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                       // "stdout", "file"
}

// FreshnessConfig contains the staleness thresholds used by the freshness
// evaluator. Thresholds are configuration inputs so tests can inject
// boundary values.
type FreshnessConfig struct {
	FreshnessDays    int `toml:"freshness_days" validate:"gt=0"`                       // Age at or below which a snapshot is fresh (default: 7)
	HighPriorityDays int `toml:"high_priority_days" validate:"gtefield=FreshnessDays"` // Age beyond which collection is high priority (default: 14)
}

// ExecutorConfig contains configuration for the sequential task executor.
// Durations are duration strings so they can be written directly in TOML.
type ExecutorConfig struct {
	TaskDelay   string `toml:"task_delay"`   // Delay between tasks (default: "2s") - primitive rate limiting
	TaskTimeout string `toml:"task_timeout"` // Per-task timeout for the external collect call (default: "60s")
}

// SchedulerConfig contains configuration for the schedule manager
type SchedulerConfig struct {
	RunTimeout        string `toml:"run_timeout"`                       // Per-run timeout for a schedule execution (default: "30m")
	HistoryLimit      int    `toml:"history_limit"`                     // Executions retained per schedule (default: 50)
	FireHour          int    `toml:"fire_hour" validate:"gte=0,lte=23"` // Hour of day named frequencies fire at (default: 6)
	ReportAfterRun    bool   `toml:"report_after_run"`                  // Generate a comparative report after successful collection
	FailureThreshold  int    `toml:"failure_threshold"`                 // Consecutive failures before health warning (default: 3)
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs"`               // Default per-schedule concurrency ceiling (default: 1)
}

// CollectorConfig contains HTTP snapshot collection configuration
type CollectorConfig struct {
	UserAgent      string `toml:"user_agent"`      // User agent string for collection requests
	RequestTimeout string `toml:"request_timeout"` // HTTP request timeout (default: "30s")
	MaxRetries     int    `toml:"max_retries"`     // Retry budget inside the collection collaborator (default: 2)
	RateLimit      string `toml:"rate_limit"`      // Minimum interval between requests (default: "1s")
	MaxBodySize    int64  `toml:"max_body_size"`   // Maximum response body size in bytes (default: 10MB)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY or config)
	Model       string  `toml:"model"`       // Model for analysis (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for analysis (default: "gemini-2.5-flash")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=claude gemini"` // "claude" or "gemini"
}

// ReportConfig contains report generation defaults
type ReportConfig struct {
	DefaultTemplate string `toml:"default_template" validate:"oneof=comprehensive executive technical strategic"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/vantage",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Freshness: FreshnessConfig{
			FreshnessDays:    7,
			HighPriorityDays: 14,
		},
		Executor: ExecutorConfig{
			TaskDelay:   "2s",
			TaskTimeout: "60s",
		},
		Scheduler: SchedulerConfig{
			RunTimeout:        "30m",
			HistoryLimit:      50,
			FireHour:          6,
			ReportAfterRun:    true,
			FailureThreshold:  3,
			MaxConcurrentJobs: 1,
		},
		Collector: CollectorConfig{
			UserAgent:      "vantage/1.0 (+https://github.com/ternarybob/vantage)",
			RequestTimeout: "30s",
			MaxRetries:     2,
			RateLimit:      "1s",
			MaxBodySize:    10 * 1024 * 1024,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0.3,
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Report: ReportConfig{
			DefaultTemplate: "comprehensive",
		},
	}
}

// LoadFromFile loads configuration from a single TOML file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration by merging defaults, the given TOML files
// in order (later files override earlier ones), and environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Environment variables override all file configs
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies VANTAGE_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VANTAGE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if badgerPath := os.Getenv("VANTAGE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("VANTAGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VANTAGE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	if days := os.Getenv("VANTAGE_FRESHNESS_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil {
			config.Freshness.FreshnessDays = v
		}
	}
	if days := os.Getenv("VANTAGE_HIGH_PRIORITY_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil {
			config.Freshness.HighPriorityDays = v
		}
	}

	if delay := os.Getenv("VANTAGE_TASK_DELAY"); delay != "" {
		if _, err := time.ParseDuration(delay); err == nil {
			config.Executor.TaskDelay = delay
		}
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("VANTAGE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("VANTAGE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := []struct {
		field string
		value string
	}{
		{"executor.task_delay", c.Executor.TaskDelay},
		{"executor.task_timeout", c.Executor.TaskTimeout},
		{"scheduler.run_timeout", c.Scheduler.RunTimeout},
		{"collector.request_timeout", c.Collector.RequestTimeout},
		{"collector.rate_limit", c.Collector.RateLimit},
		{"claude.timeout", c.Claude.Timeout},
		{"gemini.timeout", c.Gemini.Timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid configuration: %s '%s': %w", d.field, d.value, err)
		}
	}
	return nil
}

// ParseDurationOr parses a duration string, returning fallback when the
// value is empty or does not parse. Config loading validates duration
// fields up front, so the fallback covers zero-value configs built in code.
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ValidateCronSchedule validates a cron expression using the standard
// 5-field parser (minute, hour, day-of-month, month, day-of-week).
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}
