// Package dedupe removes near-duplicate photos before any remote scoring
// happens. Photos are fingerprinted on a worker pool, then clustered by
// Hamming distance to an input-order seed.
package dedupe

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/phenix995/ai-instagram-organizer/internal/fingerprint"
	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/photo"
)

// Config controls fingerprinting and clustering.
type Config struct {
	// Threshold is the maximum Hamming distance to a cluster seed for a
	// photo to count as a duplicate of it (0-64).
	Threshold int
	Workers   int
	// Prefilter skips the distance check for photos whose byte sizes
	// differ by more than 10%.
	Prefilter bool

	// OnProgress is an optional callback for the status server.
	OnProgress func(ProgressInfo)
}

// ProgressInfo reports fingerprinting progress.
type ProgressInfo struct {
	Phase   string
	Current int
	Total   int
	PhotoID string
}

// Hashed pairs a photo with its fingerprint. Err is set when the image
// could not be read or decoded; such photos stay in the pipeline and are
// treated as unique.
type Hashed struct {
	Photo       photo.Photo
	Fingerprint fingerprint.Fingerprint
	Err         error
}

// Cluster is one group of near-duplicates. Members preserves input order
// with the seed first; Representative is the seed.
type Cluster struct {
	Representative photo.Photo
	Members        []photo.Photo
}

// Result carries the clusters, the surviving photos and run accounting.
// Clusters partition the input: every photo appears in exactly one.
type Result struct {
	Clusters []Cluster
	// Unique holds one representative per cluster, in cluster order.
	Unique []photo.Photo
	Stats  Stats
}

// Stats counts deduplication outcomes for the run report.
type Stats struct {
	Input          int `json:"input"`
	Unique         int `json:"unique"`
	Duplicates     int `json:"duplicates"`
	DecodeFailures int `json:"decode_failures"`
	Clusters       int `json:"clusters"`
}

// Deduplicator fingerprints photos and builds duplicate clusters.
type Deduplicator struct {
	log zerolog.Logger
	cfg Config
}

func New(logger zerolog.Logger, cfg Config) *Deduplicator {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	return &Deduplicator{
		log: logger.With().Str("component", "dedupe").Logger(),
		cfg: cfg,
	}
}

// Run fingerprints all photos and groups near-duplicates.
func (d *Deduplicator) Run(ctx context.Context, photos []photo.Photo) Result {
	if len(photos) == 0 {
		return Result{}
	}

	result := d.BuildClusters(d.Hash(ctx, photos))

	d.log.Info().
		Int("input", result.Stats.Input).
		Int("unique", result.Stats.Unique).
		Int("duplicates", result.Stats.Duplicates).
		Int("decode_failures", result.Stats.DecodeFailures).
		Msg("deduplication finished")
	return result
}

type hashResult struct {
	index int
	fp    fingerprint.Fingerprint
	err   error
}

// Hash fingerprints every photo on a bounded worker pool. Results keep
// input order.
func (d *Deduplicator) Hash(ctx context.Context, photos []photo.Photo) []Hashed {
	bar := newProgressBar(len(photos), fmt.Sprintf("Fingerprinting photos (%d workers)", d.cfg.Workers))

	resultsChan := make(chan hashResult, len(photos))
	semaphore := make(chan struct{}, d.cfg.Workers)
	var wg sync.WaitGroup
	var processedCount int
	var progressMu sync.Mutex

	reportProgress := func(photoID string) {
		progressMu.Lock()
		processedCount++
		current := processedCount
		progressMu.Unlock()
		bar.Add(1)
		if d.cfg.OnProgress != nil {
			d.cfg.OnProgress(ProgressInfo{
				Phase:   "fingerprinting",
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
				resultsChan <- hashResult{index: idx, err: ctx.Err()}
				reportProgress(p.ID)
				return
			}

			data, err := os.ReadFile(p.Path)
			if err != nil {
				resultsChan <- hashResult{index: idx, err: fmt.Errorf("read %s: %w", p.Path, err)}
				reportProgress(p.ID)
				return
			}

			fp, err := fingerprint.Compute(data)
			resultsChan <- hashResult{index: idx, fp: fp, err: err}
			reportProgress(p.ID)
		}(i, photos[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	hashed := make([]Hashed, len(photos))
	for r := range resultsChan {
		hashed[r.index] = Hashed{Photo: photos[r.index], Fingerprint: r.fp, Err: r.err}
	}
	fmt.Println() // New line after progress bar

	return hashed
}

// BuildClusters groups fingerprinted photos around input-order seeds: the
// first unclaimed photo opens a cluster and every later unclaimed photo
// within Threshold of that seed joins it. Membership is decided against
// the seed only, never between members; two members of one cluster may be
// further than Threshold apart. Photos whose fingerprint failed become
// singleton clusters.
func (d *Deduplicator) BuildClusters(hashed []Hashed) Result {
	var result Result
	result.Stats.Input = len(hashed)

	claimed := make([]bool, len(hashed))
	for i, seed := range hashed {
		if claimed[i] {
			continue
		}
		claimed[i] = true

		cluster := Cluster{
			Representative: seed.Photo,
			Members:        []photo.Photo{seed.Photo},
		}

		if seed.Err != nil {
			result.Stats.DecodeFailures++
			metrics.DecodeFailures.Inc()
			d.log.Warn().Str("photo_id", seed.Photo.ID).Err(seed.Err).Msg("fingerprint failed, keeping photo as unique")
		} else {
			for j := i + 1; j < len(hashed); j++ {
				if claimed[j] || hashed[j].Err != nil {
					continue
				}
				if d.cfg.Prefilter && !sizeComparable(seed.Photo.Size, hashed[j].Photo.Size) {
					continue
				}
				if fingerprint.Near(seed.Fingerprint.Perceptual, hashed[j].Fingerprint.Perceptual, d.cfg.Threshold) {
					claimed[j] = true
					cluster.Members = append(cluster.Members, hashed[j].Photo)
				}
			}
		}

		if dropped := len(cluster.Members) - 1; dropped > 0 {
			result.Stats.Duplicates += dropped
			metrics.PhotosDropped.WithLabelValues("duplicate").Add(float64(dropped))
		}
		result.Clusters = append(result.Clusters, cluster)
		result.Unique = append(result.Unique, cluster.Representative)
	}

	result.Stats.Unique = len(result.Unique)
	result.Stats.Clusters = len(result.Clusters)
	return result
}

// sizeComparable reports whether two byte sizes are within 10% of the
// larger one.
func sizeComparable(a, b int64) bool {
	big, small := a, b
	if small > big {
		big, small = small, big
	}
	return big-small <= big/10
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
