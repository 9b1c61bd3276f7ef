package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config carries every tunable of a run. Values resolve in three layers:
// embedded defaults, then an optional YAML file, then environment
// variables. CLI flags are applied on top by the command layer.
type Config struct {
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
	LogLevel    string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Provider string `yaml:"provider" envconfig:"PROVIDER"`

	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`

	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Governor GovernorConfig `yaml:"governor"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Grouping GroupingConfig `yaml:"grouping"`
	Curator  CuratorConfig  `yaml:"curator"`
	Web      WebConfig      `yaml:"web"`

	Prices PricesConfig `yaml:"prices"`
}

type GeminiConfig struct {
	APIKey string `yaml:"-" envconfig:"GEMINI_API_KEY"`
	Model  string `yaml:"model" envconfig:"GEMINI_MODEL"`
}

type OpenAIConfig struct {
	Token string `yaml:"-" envconfig:"OPENAI_TOKEN"`
	Model string `yaml:"model" envconfig:"OPENAI_MODEL"`
}

type OllamaConfig struct {
	URL   string `yaml:"url" envconfig:"OLLAMA_URL"`
	Model string `yaml:"model" envconfig:"OLLAMA_MODEL"`
}

type DedupeConfig struct {
	// Threshold is the maximum Hamming distance between two fingerprints
	// considered near-duplicates (0-64).
	Threshold int  `yaml:"threshold" envconfig:"DEDUPE_THRESHOLD"`
	Workers   int  `yaml:"workers" envconfig:"DEDUPE_WORKERS"`
	Prefilter bool `yaml:"prefilter" envconfig:"DEDUPE_PREFILTER"`
}

type GovernorConfig struct {
	MaxConcurrent          int     `yaml:"max_concurrent" envconfig:"GOVERNOR_MAX_CONCURRENT"`
	RequestsPerMinute      int     `yaml:"requests_per_minute" envconfig:"GOVERNOR_REQUESTS_PER_MINUTE"`
	RequestsPerSecond      int     `yaml:"requests_per_second" envconfig:"GOVERNOR_REQUESTS_PER_SECOND"`
	FailureThreshold       int     `yaml:"failure_threshold" envconfig:"GOVERNOR_FAILURE_THRESHOLD"`
	RecoveryTimeoutSeconds int     `yaml:"recovery_timeout_seconds" envconfig:"GOVERNOR_RECOVERY_TIMEOUT_SECONDS"`
	HalfOpenMaxCalls       int     `yaml:"half_open_max_calls" envconfig:"GOVERNOR_HALF_OPEN_MAX_CALLS"`
	InitialThrottle        float64 `yaml:"initial_throttle" envconfig:"GOVERNOR_INITIAL_THROTTLE"`
	MinThrottle            float64 `yaml:"min_throttle" envconfig:"GOVERNOR_MIN_THROTTLE"`
	MaxThrottle            float64 `yaml:"max_throttle" envconfig:"GOVERNOR_MAX_THROTTLE"`
	MaxBatchSize           int     `yaml:"max_batch_size" envconfig:"GOVERNOR_MAX_BATCH_SIZE"`
}

type ScoringConfig struct {
	Workers               int     `yaml:"workers" envconfig:"SCORING_WORKERS"`
	BatchSize             int     `yaml:"batch_size" envconfig:"SCORING_BATCH_SIZE"`
	MaxRetries            int     `yaml:"max_retries" envconfig:"SCORING_MAX_RETRIES"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds" envconfig:"SCORING_REQUEST_TIMEOUT_SECONDS"`
	BackoffInitialSeconds float64 `yaml:"backoff_initial_seconds"`
	BackoffMaxSeconds     float64 `yaml:"backoff_max_seconds"`
	BackoffMultiplier     float64 `yaml:"backoff_multiplier"`
}

type GroupingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" envconfig:"GROUPING_SIMILARITY_THRESHOLD"`
	SelectionPolicy     string  `yaml:"selection_policy" envconfig:"GROUPING_SELECTION_POLICY"`
	MaxPerGroup         int     `yaml:"max_per_group" envconfig:"GROUPING_MAX_PER_GROUP"`
}

type CuratorConfig struct {
	PostSize        int `yaml:"post_size" envconfig:"CURATOR_POST_SIZE"`
	MaxPremiumPosts int `yaml:"max_premium_posts"`
	MaxDiversePosts int `yaml:"max_diverse_posts"`
	MinThemeSize    int `yaml:"min_theme_size"`
}

type WebConfig struct {
	// Addr enables the status server when non-empty, e.g. ":8087".
	Addr string `yaml:"addr" envconfig:"STATUS_ADDR"`
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

// RequestPricing holds USD per 1M tokens.
type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Load resolves configuration: embedded defaults, then the optional YAML
// file at path, then environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Providers the pipeline knows how to construct.
var knownProviders = map[string]bool{"gemini": true, "openai": true, "ollama": true}

// Selection policies the representative selector understands.
var knownPolicies = map[string]bool{
	"highest_score":   true,
	"most_unique":     true,
	"best_technical":  true,
	"best_engagement": true,
}

func (c *Config) Validate() error {
	if !knownProviders[c.Provider] {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Dedupe.Threshold < 0 || c.Dedupe.Threshold > 64 {
		return fmt.Errorf("dedupe threshold must be within [0, 64], got %d", c.Dedupe.Threshold)
	}
	if c.Dedupe.Workers < 1 {
		return fmt.Errorf("dedupe workers must be >= 1")
	}
	if c.Governor.MaxConcurrent < 1 {
		return fmt.Errorf("governor max_concurrent must be >= 1")
	}
	if c.Governor.RequestsPerMinute < 1 {
		return fmt.Errorf("governor requests_per_minute must be >= 1")
	}
	if c.Governor.RequestsPerSecond < 1 {
		return fmt.Errorf("governor requests_per_second must be >= 1")
	}
	if c.Governor.FailureThreshold < 1 {
		return fmt.Errorf("governor failure_threshold must be >= 1")
	}
	if c.Governor.RecoveryTimeoutSeconds < 1 {
		return fmt.Errorf("governor recovery_timeout_seconds must be >= 1")
	}
	if c.Governor.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("governor half_open_max_calls must be >= 1")
	}
	if c.Governor.MinThrottle <= 0 || c.Governor.MaxThrottle > 1.0 ||
		c.Governor.MinThrottle > c.Governor.MaxThrottle {
		return fmt.Errorf("governor throttle bounds must satisfy 0 < min <= max <= 1.0, got [%.2f, %.2f]",
			c.Governor.MinThrottle, c.Governor.MaxThrottle)
	}
	if c.Governor.InitialThrottle < c.Governor.MinThrottle || c.Governor.InitialThrottle > c.Governor.MaxThrottle {
		return fmt.Errorf("governor initial_throttle %.2f outside [%.2f, %.2f]",
			c.Governor.InitialThrottle, c.Governor.MinThrottle, c.Governor.MaxThrottle)
	}
	if c.Governor.MaxBatchSize < 1 {
		return fmt.Errorf("governor max_batch_size must be >= 1")
	}
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("scoring workers must be >= 1")
	}
	if c.Scoring.BatchSize < 1 {
		return fmt.Errorf("scoring batch_size must be >= 1")
	}
	if c.Scoring.MaxRetries < 0 {
		return fmt.Errorf("scoring max_retries must be >= 0")
	}
	if c.Scoring.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("scoring request_timeout_seconds must be >= 1")
	}
	if c.Grouping.SimilarityThreshold < 0 || c.Grouping.SimilarityThreshold > 1 {
		return fmt.Errorf("grouping similarity_threshold must be within [0, 1], got %.2f", c.Grouping.SimilarityThreshold)
	}
	if !knownPolicies[c.Grouping.SelectionPolicy] {
		return fmt.Errorf("unknown selection policy %q", c.Grouping.SelectionPolicy)
	}
	if c.Grouping.MaxPerGroup < 1 {
		return fmt.Errorf("grouping max_per_group must be >= 1")
	}
	if c.Curator.PostSize < 1 {
		return fmt.Errorf("curator post_size must be >= 1")
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		return fmt.Errorf("log_level is required")
	}
	return nil
}

// GetModelPricing returns pricing for a model, zero-valued when unknown.
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	return ModelPricing{}
}
