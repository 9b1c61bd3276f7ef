package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %q", cfg.Provider)
	}
	if cfg.Dedupe.Threshold != 3 {
		t.Errorf("expected default dedupe threshold 3, got %d", cfg.Dedupe.Threshold)
	}
	if cfg.Governor.MaxConcurrent != 3 {
		t.Errorf("expected default max_concurrent 3, got %d", cfg.Governor.MaxConcurrent)
	}
	if cfg.Governor.RequestsPerMinute != 1500 {
		t.Errorf("expected default requests_per_minute 1500, got %d", cfg.Governor.RequestsPerMinute)
	}
	if cfg.Governor.InitialThrottle != 0.7 {
		t.Errorf("expected default initial_throttle 0.7, got %f", cfg.Governor.InitialThrottle)
	}
	if cfg.Grouping.SimilarityThreshold != 0.7 {
		t.Errorf("expected default similarity_threshold 0.7, got %f", cfg.Grouping.SimilarityThreshold)
	}
	if cfg.Grouping.SelectionPolicy != "highest_score" {
		t.Errorf("expected default policy highest_score, got %q", cfg.Grouping.SelectionPolicy)
	}
	if cfg.Curator.PostSize != 10 {
		t.Errorf("expected default post_size 10, got %d", cfg.Curator.PostSize)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("dedupe:\n  threshold: 8\ngrouping:\n  selection_policy: most_unique\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Dedupe.Threshold != 8 {
		t.Errorf("expected file override threshold 8, got %d", cfg.Dedupe.Threshold)
	}
	if cfg.Grouping.SelectionPolicy != "most_unique" {
		t.Errorf("expected file override policy most_unique, got %q", cfg.Grouping.SelectionPolicy)
	}
	// Unmentioned fields keep their defaults.
	if cfg.Governor.FailureThreshold != 3 {
		t.Errorf("expected default failure_threshold 3, got %d", cfg.Governor.FailureThreshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key-123")
	t.Setenv("DEDUPE_THRESHOLD", "5")
	t.Setenv("GOVERNOR_MAX_CONCURRENT", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Gemini.APIKey != "test-key-123" {
		t.Errorf("expected API key from env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Dedupe.Threshold != 5 {
		t.Errorf("expected env override threshold 5, got %d", cfg.Dedupe.Threshold)
	}
	if cfg.Governor.MaxConcurrent != 7 {
		t.Errorf("expected env override max_concurrent 7, got %d", cfg.Governor.MaxConcurrent)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearConfigEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "claude" }, true},
		{"dedupe threshold negative", func(c *Config) { c.Dedupe.Threshold = -1 }, true},
		{"dedupe threshold too large", func(c *Config) { c.Dedupe.Threshold = 65 }, true},
		{"dedupe threshold upper edge", func(c *Config) { c.Dedupe.Threshold = 64 }, false},
		{"zero max concurrent", func(c *Config) { c.Governor.MaxConcurrent = 0 }, true},
		{"zero failure threshold", func(c *Config) { c.Governor.FailureThreshold = 0 }, true},
		{"throttle min above max", func(c *Config) { c.Governor.MinThrottle = 0.9 }, true},
		{"throttle max above one", func(c *Config) { c.Governor.MaxThrottle = 1.5 }, true},
		{"initial throttle below min", func(c *Config) { c.Governor.InitialThrottle = 0.1 }, true},
		{"similarity threshold above one", func(c *Config) { c.Grouping.SimilarityThreshold = 1.2 }, true},
		{"unknown policy", func(c *Config) { c.Grouping.SelectionPolicy = "random" }, true},
		{"zero max per group", func(c *Config) { c.Grouping.MaxPerGroup = 0 }, true},
		{"zero scoring workers", func(c *Config) { c.Scoring.Workers = 0 }, true},
		{"zero post size", func(c *Config) { c.Curator.PostSize = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestGetModelPricing(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	pricing := cfg.GetModelPricing("gemini-2.5-flash")
	if pricing.Standard.Input != 0.30 {
		t.Errorf("expected gemini standard input 0.30, got %f", pricing.Standard.Input)
	}
	if pricing.Standard.Output != 2.50 {
		t.Errorf("expected gemini standard output 2.50, got %f", pricing.Standard.Output)
	}

	pricing = cfg.GetModelPricing("gpt-4.1-mini")
	if pricing.Batch.Input != 0.20 {
		t.Errorf("expected batch input price 0.20, got %f", pricing.Batch.Input)
	}

	pricing = cfg.GetModelPricing("unknown-model-xyz")
	if pricing.Standard.Input != 0 || pricing.Standard.Output != 0 {
		t.Errorf("expected zero pricing for unknown model, got input=%f output=%f",
			pricing.Standard.Input, pricing.Standard.Output)
	}
}

// clearConfigEnv unsets every env var the config layer reads so tests see
// only the layers they set up themselves.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ENVIRONMENT", "LOG_LEVEL", "PROVIDER",
		"GEMINI_API_KEY", "GEMINI_MODEL", "OPENAI_TOKEN", "OPENAI_MODEL",
		"OLLAMA_URL", "OLLAMA_MODEL",
		"DEDUPE_THRESHOLD", "DEDUPE_WORKERS", "DEDUPE_PREFILTER",
		"GOVERNOR_MAX_CONCURRENT", "GOVERNOR_REQUESTS_PER_MINUTE",
		"GOVERNOR_REQUESTS_PER_SECOND", "GOVERNOR_FAILURE_THRESHOLD",
		"GOVERNOR_RECOVERY_TIMEOUT_SECONDS", "GOVERNOR_HALF_OPEN_MAX_CALLS",
		"GOVERNOR_INITIAL_THROTTLE", "GOVERNOR_MIN_THROTTLE", "GOVERNOR_MAX_THROTTLE",
		"GOVERNOR_MAX_BATCH_SIZE",
		"SCORING_WORKERS", "SCORING_BATCH_SIZE", "SCORING_MAX_RETRIES",
		"SCORING_REQUEST_TIMEOUT_SECONDS",
		"GROUPING_SIMILARITY_THRESHOLD", "GROUPING_SELECTION_POLICY", "GROUPING_MAX_PER_GROUP",
		"CURATOR_POST_SIZE", "STATUS_ADDR",
	}
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v) // restores after test
			os.Unsetenv(k)
		}
	}
}
