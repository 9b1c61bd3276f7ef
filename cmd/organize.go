package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phenix995/ai-instagram-organizer/internal/ai"
	"github.com/phenix995/ai-instagram-organizer/internal/config"
	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/logging"
	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/pipeline"
	"github.com/phenix995/ai-instagram-organizer/internal/web"
)

var organizeCmd = &cobra.Command{
	Use:   "organize [source-folder]",
	Short: "Curate a photo folder into Instagram posts",
	Long: `Organize runs the full curation pipeline over a folder of photos:
near-duplicate removal, AI quality scoring, contextual filtering and post
assembly. Results land in a timestamped output folder together with an
analytics report.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().String("output", "Instagram_Organized", "Output folder name prefix")
	organizeCmd.Flags().Bool("dry-run", false, "Run every stage but write nothing")
	organizeCmd.Flags().Int("limit", 0, "Limit number of photos to score (0 = no limit)")
	organizeCmd.Flags().String("provider", "", "AI provider to use: gemini, openai, ollama (default from config)")
	organizeCmd.Flags().Int("batch-size", 0, "Photos per scoring request (0 = config value)")
	organizeCmd.Flags().Int("concurrency", 0, "Number of parallel scoring workers (0 = config value)")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dryRun := mustGetBool(cmd, "dry-run")
	limit := mustGetInt(cmd, "limit")
	outputPrefix := mustGetString(cmd, "output")
	if provider := mustGetString(cmd, "provider"); provider != "" {
		cfg.Provider = provider
	}
	if batchSize := mustGetInt(cmd, "batch-size"); batchSize > 0 {
		cfg.Scoring.BatchSize = batchSize
	}
	if concurrency := mustGetInt(cmd, "concurrency"); concurrency > 0 {
		cfg.Scoring.Workers = concurrency
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, finishing up...")
		cancel()
	}()

	aiProvider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	// Multi-image requests bill at batch rates.
	if cfg.Scoring.BatchSize > 1 {
		aiProvider.SetBatchMode(true)
	}

	gov := newGovernor(cfg, logger)
	outputDir := fmt.Sprintf("%s_%d", outputPrefix, time.Now().Unix())

	p := pipeline.New(logger, cfg, aiProvider, gov, pipeline.Options{
		Source: source,
		Output: outputDir,
		DryRun: dryRun,
		Limit:  limit,
	})

	var statusServer *web.Server
	if cfg.Web.Addr != "" {
		statusServer = web.NewServer(logger, cfg.Web.Addr, p.Status)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	fmt.Printf("Organizing photos from: %s\n", source)
	fmt.Printf("Provider: %s\n", aiProvider.Name())
	if dryRun {
		fmt.Println("Mode: DRY RUN (no files will be written)")
	}
	fmt.Println()

	rep, runErr := p.Run(ctx)

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("status server shutdown failed")
		}
	}

	// Interrupted runs still get the summary of whatever finished.
	if rep != nil {
		fmt.Println()
		rep.WriteSummary(os.Stdout)
		if !dryRun && runErr == nil {
			fmt.Printf("\nOutput folder: %s\n", outputDir)
		}
	}
	if runErr != nil {
		return fmt.Errorf("organizing failed: %w", runErr)
	}
	return nil
}

// buildProvider creates the AI provider named by the config.
func buildProvider(ctx context.Context, cfg *config.Config) (ai.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		pricing := cfg.GetModelPricing(cfg.Gemini.Model)
		provider, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
			ai.RequestPricing{Input: pricing.Batch.Input, Output: pricing.Batch.Output},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		return provider, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		pricing := cfg.GetModelPricing(cfg.OpenAI.Model)
		return ai.NewOpenAIProvider(cfg.OpenAI.Token, cfg.OpenAI.Model,
			ai.RequestPricing{Input: pricing.Standard.Input, Output: pricing.Standard.Output},
			ai.RequestPricing{Input: pricing.Batch.Input, Output: pricing.Batch.Output},
		), nil
	case "ollama":
		return ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: gemini, openai, ollama)", cfg.Provider)
	}
}

// newGovernor wires the rate governor from config and hooks breaker
// transitions into the metrics.
func newGovernor(cfg *config.Config, logger zerolog.Logger) *governor.Governor {
	return governor.New(governor.Config{
		Target:            cfg.Provider,
		MaxConcurrent:     cfg.Governor.MaxConcurrent,
		RequestsPerWindow: cfg.Governor.RequestsPerMinute,
		Window:            time.Minute,
		RequestsPerSecond: cfg.Governor.RequestsPerSecond,
		FailureThreshold:  cfg.Governor.FailureThreshold,
		RecoveryTimeout:   time.Duration(cfg.Governor.RecoveryTimeoutSeconds) * time.Second,
		HalfOpenMaxCalls:  cfg.Governor.HalfOpenMaxCalls,
		InitialThrottle:   cfg.Governor.InitialThrottle,
		MinThrottle:       cfg.Governor.MinThrottle,
		MaxThrottle:       cfg.Governor.MaxThrottle,
		MaxBatchSize:      cfg.Governor.MaxBatchSize,
		OnStateChange: func(from, to governor.State) {
			metrics.RecordTransition(cfg.Provider, from, to)
		},
	}, logger)
}
