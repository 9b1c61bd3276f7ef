// Package pipeline wires the curation stages together: source scan,
// near-duplicate removal, remote scoring, contextual filtering, post
// assembly and output organization.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/phenix995/ai-instagram-organizer/internal/ai"
	"github.com/phenix995/ai-instagram-organizer/internal/config"
	"github.com/phenix995/ai-instagram-organizer/internal/curator"
	"github.com/phenix995/ai-instagram-organizer/internal/dedupe"
	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/grouping"
	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/photo"
	"github.com/phenix995/ai-instagram-organizer/internal/report"
	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
	"github.com/phenix995/ai-instagram-organizer/internal/web"
)

// Options are the per-run knobs that come from the command line rather
// than the config file.
type Options struct {
	Source string
	Output string

	// DryRun runs every stage but writes nothing to disk.
	DryRun bool

	// Limit keeps only the first N photos (in capture order) when > 0.
	// Development aid for cheap runs against big folders.
	Limit int
}

// Pipeline runs the full curation flow against one source folder.
type Pipeline struct {
	log      zerolog.Logger
	baseLog  zerolog.Logger
	cfg      *config.Config
	provider ai.Provider
	gov      *governor.Governor
	opts     Options
	tracker  *Tracker
}

// New assembles a pipeline. The provider and governor are built by the
// command layer; every stage engine is constructed here from cfg.
func New(logger zerolog.Logger, cfg *config.Config, provider ai.Provider, gov *governor.Governor, opts Options) *Pipeline {
	return &Pipeline{
		log:      logger.With().Str("component", "pipeline").Logger(),
		baseLog:  logger,
		cfg:      cfg,
		provider: provider,
		gov:      gov,
		opts:     opts,
		tracker:  newTracker(gov),
	}
}

// Status reports live run progress. It satisfies web.StatusFunc.
func (p *Pipeline) Status() web.Status {
	return p.tracker.Status()
}

// Run executes the pipeline and returns the run report. On cancellation
// the returned report carries the stats of the partial run alongside
// the context error.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	p.log.Info().
		Str("source", p.opts.Source).
		Str("output", p.opts.Output).
		Str("provider", p.provider.Name()).
		Bool("dry_run", p.opts.DryRun).
		Msg("starting pipeline run")

	p.tracker.SetPhase("scanning", 0)
	scan, err := photo.Scan(p.opts.Source)
	if err != nil {
		return nil, err
	}
	metrics.PhotosProcessed.WithLabelValues("scanned").Add(float64(len(scan.Photos)))
	p.log.Info().Int("photos", len(scan.Photos)).Int("skipped", scan.Skipped).Msg("source scan finished")
	if len(scan.Photos) == 0 {
		return nil, fmt.Errorf("no supported photos found in %s", p.opts.Source)
	}

	var stages report.Stages

	p.tracker.SetPhase("deduplicating", len(scan.Photos))
	deduped := p.newDeduplicator().Run(ctx, scan.Photos)
	stages.Dedupe = deduped.Stats
	metrics.PhotosProcessed.WithLabelValues("deduplicated").Add(float64(len(deduped.Unique)))

	photos := deduped.Unique
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].CaptureTime.Before(photos[j].CaptureTime)
	})
	if p.opts.Limit > 0 && len(photos) > p.opts.Limit {
		p.log.Info().Int("limit", p.opts.Limit).Int("unique", len(photos)).Msg("development limit applied")
		photos = photos[:p.opts.Limit]
	}

	if ctx.Err() != nil {
		return p.buildReport(nil, curator.Plan{}, stages), ctx.Err()
	}

	p.tracker.SetPhase("scoring", len(photos))
	records, scoreStats := p.newAggregator().Score(ctx, photos)
	stages.Scoring = scoreStats
	metrics.PhotosProcessed.WithLabelValues("scored").Add(float64(len(records)))
	if ctx.Err() != nil {
		return p.buildReport(records, curator.Plan{}, stages), ctx.Err()
	}
	if len(records) == 0 {
		p.log.Error().Str("provider", p.provider.Name()).Msg("no photos could be scored, check the provider setup")
	}

	p.tracker.SetPhase("filtering", len(records))
	kept, groupStats := p.newGroupingEngine().Filter(records)
	stages.Grouping = groupStats

	p.tracker.SetPhase("curating", len(kept))
	plan := p.newCurator().Assemble(kept)
	stages.Curation = plan.Stats
	metrics.PhotosProcessed.WithLabelValues("curated").Add(float64(plan.Stats.PhotosUsed))

	rep := p.buildReport(kept, plan, stages)

	if p.opts.DryRun {
		p.log.Info().Msg("dry run, skipping output organization")
	} else {
		p.tracker.SetPhase("organizing", plan.Stats.TotalPosts)
		if err := p.organize(plan); err != nil {
			return rep, fmt.Errorf("organizing output: %w", err)
		}
		if err := rep.WriteFiles(filepath.Join(p.opts.Output, "Analytics")); err != nil {
			return rep, err
		}
	}

	p.tracker.SetPhase("done", 0)
	p.log.Info().
		Dur("elapsed", time.Since(start)).
		Int("posts", plan.Stats.TotalPosts).
		Int("photos_used", plan.Stats.PhotosUsed).
		Msg("pipeline run finished")
	return rep, nil
}

func (p *Pipeline) newDeduplicator() *dedupe.Deduplicator {
	return dedupe.New(p.baseLog, dedupe.Config{
		Threshold: p.cfg.Dedupe.Threshold,
		Workers:   p.cfg.Dedupe.Workers,
		Prefilter: p.cfg.Dedupe.Prefilter,
		OnProgress: func(info dedupe.ProgressInfo) {
			p.tracker.Observe(info.Current, info.Total, info.PhotoID)
		},
	})
}

func (p *Pipeline) newAggregator() *scoring.Aggregator {
	return scoring.New(p.provider, p.gov, p.baseLog, scoring.Config{
		Workers:        p.cfg.Scoring.Workers,
		BatchSize:      p.cfg.Scoring.BatchSize,
		MaxRetries:     p.cfg.Scoring.MaxRetries,
		RequestTimeout: time.Duration(p.cfg.Scoring.RequestTimeoutSeconds) * time.Second,
		InitialBackoff: time.Duration(p.cfg.Scoring.BackoffInitialSeconds * float64(time.Second)),
		MaxBackoff:     time.Duration(p.cfg.Scoring.BackoffMaxSeconds * float64(time.Second)),
		BackoffFactor:  p.cfg.Scoring.BackoffMultiplier,
		OnProgress: func(info scoring.ProgressInfo) {
			p.tracker.Observe(info.Current, info.Total, info.PhotoID)
		},
	})
}

func (p *Pipeline) newGroupingEngine() *grouping.Engine {
	return grouping.New(p.baseLog, grouping.Config{
		SimilarityThreshold: p.cfg.Grouping.SimilarityThreshold,
		SelectionPolicy:     p.cfg.Grouping.SelectionPolicy,
		MaxPerGroup:         p.cfg.Grouping.MaxPerGroup,
	})
}

func (p *Pipeline) newCurator() *curator.Curator {
	return curator.New(p.baseLog, curator.Config{
		PostSize:        p.cfg.Curator.PostSize,
		MaxPremiumPosts: p.cfg.Curator.MaxPremiumPosts,
		MaxDiversePosts: p.cfg.Curator.MaxDiversePosts,
		MinThemeSize:    p.cfg.Curator.MinThemeSize,
	})
}

func (p *Pipeline) buildReport(records []scoring.Record, plan curator.Plan, stages report.Stages) *report.Report {
	usage := p.provider.GetUsage()
	rep := report.Build(report.Input{
		Records:  records,
		Plan:     plan,
		PostSize: p.cfg.Curator.PostSize,
		Stages:   stages,
		Governor: p.gov.Snapshot(),
		Usage: report.UsageInfo{
			Provider:     p.provider.Name(),
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalCostUSD: usage.TotalCost,
		},
	})
	return &rep
}
