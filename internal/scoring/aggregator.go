package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/phenix995/ai-instagram-organizer/internal/ai"
	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/photo"
)

// Config controls the scoring worker pool.
type Config struct {
	Workers        int
	BatchSize      int // images per request; effective size is capped by the governor
	MaxRetries     int
	RequestTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// OnProgress is an optional callback for the status server.
	OnProgress func(ProgressInfo)
}

// ProgressInfo reports scoring progress.
type ProgressInfo struct {
	Phase   string
	Current int
	Total   int
	PhotoID string
}

// Stats counts scoring outcomes for the run report.
type Stats struct {
	Processed          int `json:"processed"`
	Scored             int `json:"scored"`
	ReadFailures       int `json:"read_failures"`
	RemoteFailures     int `json:"remote_failures"`
	MalformedResponses int `json:"malformed_responses"`
	Cancelled          int `json:"cancelled"`
}

func (s *Stats) add(other Stats) {
	s.Processed += other.Processed
	s.Scored += other.Scored
	s.ReadFailures += other.ReadFailures
	s.RemoteFailures += other.RemoteFailures
	s.MalformedResponses += other.MalformedResponses
	s.Cancelled += other.Cancelled
}

// Aggregator drives scoring workers against a provider, with every
// remote call admitted through the rate governor.
type Aggregator struct {
	provider ai.Provider
	gov      *governor.Governor
	log      zerolog.Logger
	cfg      Config
}

func New(provider ai.Provider, gov *governor.Governor, logger zerolog.Logger, cfg Config) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 120 * time.Second
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2.5
	}

	return &Aggregator{
		provider: provider,
		gov:      gov,
		log:      logger.With().Str("component", "scoring").Str("provider", provider.Name()).Logger(),
		cfg:      cfg,
	}
}

// Score evaluates all photos and returns their records in input order,
// minus the photos dropped after exhausted retries or unusable
// responses. Providers that accept multi-image requests are driven in
// batches when BatchSize allows it.
func (a *Aggregator) Score(ctx context.Context, photos []photo.Photo) ([]Record, Stats) {
	if len(photos) == 0 {
		return nil, Stats{}
	}

	if bs, ok := a.provider.(ai.BatchScorer); ok && a.cfg.BatchSize > 1 {
		return a.scoreBatched(ctx, bs, photos)
	}
	return a.scoreIndividually(ctx, photos)
}

// scoreResult holds the outcome for a single photo.
type scoreResult struct {
	index      int
	record     *Record
	err        error
	readFailed bool
}

func (a *Aggregator) scoreIndividually(ctx context.Context, photos []photo.Photo) ([]Record, Stats) {
	bar := newProgressBar(len(photos), fmt.Sprintf("Scoring photos (%d workers)", a.cfg.Workers))

	resultsChan := make(chan scoreResult, len(photos))
	semaphore := make(chan struct{}, a.cfg.Workers)
	var wg sync.WaitGroup
	var processedCount int
	var progressMu sync.Mutex

	reportProgress := func(photoID string) {
		progressMu.Lock()
		processedCount++
		current := processedCount
		progressMu.Unlock()
		bar.Add(1)
		if a.cfg.OnProgress != nil {
			a.cfg.OnProgress(ProgressInfo{
				Phase:   "scoring",
				Current: current,
				Total:   len(photos),
				PhotoID: photoID,
			})
		}
	}

	for i := range photos {
		wg.Add(1)
		go func(idx int, p photo.Photo) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- scoreResult{index: idx, err: ctx.Err()}
				reportProgress(p.ID)
				return
			}

			imageData, err := os.ReadFile(p.Path)
			if err != nil {
				resultsChan <- scoreResult{index: idx, err: fmt.Errorf("failed to read photo %s: %w", p.ID, err), readFailed: true}
				reportProgress(p.ID)
				return
			}

			record, err := a.scoreOne(ctx, p, imageData)
			if err != nil {
				resultsChan <- scoreResult{index: idx, err: err}
				reportProgress(p.ID)
				return
			}

			resultsChan <- scoreResult{index: idx, record: &record}
			reportProgress(p.ID)
		}(i, photos[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results maintaining order
	results := make([]*scoreResult, len(photos))
	for r := range resultsChan {
		results[r.index] = &r
	}
	fmt.Println() // New line after progress bar

	var stats Stats
	records := make([]Record, 0, len(photos))
	for i, r := range results {
		stats.Processed++
		if r == nil {
			stats.RemoteFailures++
			a.log.Error().Str("photo_id", photos[i].ID).Msg("no scoring result")
			continue
		}
		if r.err != nil {
			a.countFailure(ctx, photos[i], r.err, r.readFailed, &stats)
			continue
		}
		records = append(records, *r.record)
		stats.Scored++
	}

	metrics.ObserveGovernor(a.gov.Snapshot())
	return records, stats
}

func (a *Aggregator) scoreBatched(ctx context.Context, bs ai.BatchScorer, photos []photo.Photo) ([]Record, Stats) {
	var stats Stats
	records := make([]Record, 0, len(photos))

	bar := newProgressBar(len(photos), "Scoring photos (batched)")

	i := 0
	for i < len(photos) {
		if ctx.Err() != nil {
			remaining := len(photos) - i
			stats.Processed += remaining
			stats.Cancelled += remaining
			break
		}

		size := a.cfg.BatchSize
		if optimal := a.gov.OptimalBatchSize(); optimal < size {
			size = optimal
		}
		if remaining := len(photos) - i; remaining < size {
			size = remaining
		}
		if size < 1 {
			size = 1
		}

		chunk := photos[i : i+size]
		i += size

		chunkRecords, chunkStats := a.scoreChunk(ctx, bs, chunk)
		records = append(records, chunkRecords...)
		stats.add(chunkStats)

		bar.Add(len(chunk))
		if a.cfg.OnProgress != nil {
			a.cfg.OnProgress(ProgressInfo{Phase: "scoring", Current: i, Total: len(photos)})
		}
	}
	fmt.Println()

	metrics.ObserveGovernor(a.gov.Snapshot())
	return records, stats
}

// scoreChunk scores one batch. When the batch call fails or its answer
// is unusable, every loaded photo falls back to a per-image call.
func (a *Aggregator) scoreChunk(ctx context.Context, bs ai.BatchScorer, chunk []photo.Photo) ([]Record, Stats) {
	var stats Stats

	images := make([][]byte, 0, len(chunk))
	loaded := make([]photo.Photo, 0, len(chunk))
	for _, p := range chunk {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			stats.Processed++
			stats.ReadFailures++
			metrics.PhotosDropped.WithLabelValues("read_failure").Inc()
			a.log.Error().Str("photo_id", p.ID).Err(err).Msg("failed to read photo")
			continue
		}
		images = append(images, data)
		loaded = append(loaded, p)
	}
	if len(loaded) == 0 {
		return nil, stats
	}

	if len(loaded) == 1 {
		records, fallbackStats := a.scoreLoaded(ctx, loaded, images)
		stats.add(fallbackStats)
		return records, stats
	}

	evals, err := a.callBatch(ctx, bs, images)
	if err != nil {
		a.log.Warn().Err(err).Int("batch_size", len(loaded)).Msg("batch call failed, scoring images individually")
		records, fallbackStats := a.scoreLoaded(ctx, loaded, images)
		stats.add(fallbackStats)
		return records, stats
	}

	var records []Record
	for idx, p := range loaded {
		stats.Processed++
		if idx < len(evals) && evals[idx] != nil {
			records = append(records, NewRecord(p, evals[idx]))
			stats.Scored++
			continue
		}

		// The model answered with fewer objects than images.
		record, err := a.scoreOne(ctx, p, images[idx])
		if err != nil {
			a.countFailure(ctx, p, err, false, &stats)
			continue
		}
		records = append(records, record)
		stats.Scored++
	}
	return records, stats
}

// scoreLoaded scores already-read images one by one.
func (a *Aggregator) scoreLoaded(ctx context.Context, loaded []photo.Photo, images [][]byte) ([]Record, Stats) {
	var stats Stats
	var records []Record
	for idx, p := range loaded {
		stats.Processed++
		if ctx.Err() != nil {
			stats.Cancelled++
			continue
		}
		record, err := a.scoreOne(ctx, p, images[idx])
		if err != nil {
			a.countFailure(ctx, p, err, false, &stats)
			continue
		}
		records = append(records, record)
		stats.Scored++
	}
	return records, stats
}

// scoreOne performs governed calls for a single photo, retrying
// transient failures with exponential backoff and jitter. Unusable
// responses are permanent: the call succeeded, so it is not retried.
func (a *Aggregator) scoreOne(ctx context.Context, p photo.Photo, imageData []byte) (Record, error) {
	var record Record

	operation := func() error {
		permit, err := a.gov.Acquire(ctx)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
		raw, err := a.provider.ScorePhoto(callCtx, imageData)
		cancel()
		if err != nil {
			permit.Release(false)
			metrics.ScoringRequests.WithLabelValues(a.provider.Name(), "failure").Inc()
			return fmt.Errorf("scoring call for %s failed: %w", p.ID, err)
		}
		permit.Release(true)
		metrics.ScoringRequests.WithLabelValues(a.provider.Name(), "success").Inc()

		eval, err := ParseEvaluation(raw)
		if err != nil {
			return backoff.Permanent(err)
		}

		record = NewRecord(p, eval)
		return nil
	}

	err := backoff.Retry(operation, a.newBackOff(ctx))
	return record, err
}

// callBatch performs one governed multi-image call.
func (a *Aggregator) callBatch(ctx context.Context, bs ai.BatchScorer, images [][]byte) ([]*Evaluation, error) {
	var evals []*Evaluation

	operation := func() error {
		permit, err := a.gov.Acquire(ctx)
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
		raw, err := bs.ScoreBatch(callCtx, images)
		cancel()
		if err != nil {
			permit.Release(false)
			metrics.ScoringRequests.WithLabelValues(a.provider.Name(), "failure").Inc()
			return fmt.Errorf("batch scoring call failed: %w", err)
		}
		permit.Release(true)
		metrics.ScoringRequests.WithLabelValues(a.provider.Name(), "success").Inc()

		parsed, err := ParseBatchEvaluations(raw, len(images))
		if err != nil {
			return backoff.Permanent(err)
		}
		evals = parsed
		return nil
	}

	err := backoff.Retry(operation, a.newBackOff(ctx))
	return evals, err
}

func (a *Aggregator) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.cfg.InitialBackoff
	bo.MaxInterval = a.cfg.MaxBackoff
	bo.Multiplier = a.cfg.BackoffFactor
	bo.RandomizationFactor = 0.25
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(a.cfg.MaxRetries)), ctx)
}

// countFailure buckets a dropped photo by cause. A context.DeadlineExceeded
// deep in the chain is a per-call timeout, not a cancelled run, so only the
// run context decides the cancelled bucket.
func (a *Aggregator) countFailure(ctx context.Context, p photo.Photo, err error, readFailed bool, stats *Stats) {
	var malformed *MalformedResponseError
	switch {
	case readFailed:
		stats.ReadFailures++
		metrics.PhotosDropped.WithLabelValues("read_failure").Inc()
		a.log.Error().Str("photo_id", p.ID).Err(err).Msg("failed to read photo")
	case errors.As(err, &malformed):
		stats.MalformedResponses++
		metrics.PhotosDropped.WithLabelValues("malformed_response").Inc()
		a.log.Warn().Str("photo_id", p.ID).Err(err).Msg("dropping photo: unusable model response")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		stats.Cancelled++
		a.log.Debug().Str("photo_id", p.ID).Msg("scoring cancelled")
	default:
		stats.RemoteFailures++
		metrics.PhotosDropped.WithLabelValues("remote_failure").Inc()
		a.log.Error().Str("photo_id", p.ID).Err(err).Msg("dropping photo after exhausted retries")
	}
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
