// Package grouping collapses contextually similar photos (same scene,
// meal or subject) down to each group's best members. Similarity comes
// from the scored attributes, not from pixels.
package grouping

import (
	"github.com/rs/zerolog"

	"github.com/phenix995/ai-instagram-organizer/internal/metrics"
	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// Config controls grouping and representative selection.
type Config struct {
	// SimilarityThreshold is the minimum similarity to a cluster seed for
	// a record to join that cluster (0-1).
	SimilarityThreshold float64
	SelectionPolicy     string
	MaxPerGroup         int
}

// Cluster is one group of contextually similar records. Members preserves
// input order with the seed first.
type Cluster struct {
	Seed    scoring.Record
	Members []scoring.Record
}

// Stats counts grouping outcomes for the run report.
type Stats struct {
	Input    int `json:"input"`
	Kept     int `json:"kept"`
	Filtered int `json:"filtered"`
	Clusters int `json:"clusters"`
}

// Engine groups scored records and keeps each group's winners.
type Engine struct {
	log zerolog.Logger
	cfg Config
}

func New(logger zerolog.Logger, cfg Config) *Engine {
	if cfg.SelectionPolicy == "" {
		cfg.SelectionPolicy = PolicyHighestScore
	}
	if cfg.MaxPerGroup < 1 {
		cfg.MaxPerGroup = 1
	}
	return &Engine{
		log: logger.With().Str("component", "grouping").Logger(),
		cfg: cfg,
	}
}

// Filter clusters the records and reduces every cluster to its selected
// winners, in cluster order.
func (e *Engine) Filter(records []scoring.Record) ([]scoring.Record, Stats) {
	clusters := BuildClusters(records, e.cfg.SimilarityThreshold)

	kept := make([]scoring.Record, 0, len(clusters))
	for _, cluster := range clusters {
		winners := Select(cluster, e.cfg.SelectionPolicy, e.cfg.MaxPerGroup)
		kept = append(kept, winners...)

		if dropped := len(cluster.Members) - len(winners); dropped > 0 {
			metrics.PhotosDropped.WithLabelValues("context_similar").Add(float64(dropped))
			e.log.Debug().
				Str("category", cluster.Seed.Category).
				Int("kept", len(winners)).
				Int("members", len(cluster.Members)).
				Msg("collapsed context group")
		}
	}

	stats := Stats{
		Input:    len(records),
		Kept:     len(kept),
		Filtered: len(records) - len(kept),
		Clusters: len(clusters),
	}
	e.log.Info().
		Int("input", stats.Input).
		Int("kept", stats.Kept).
		Int("filtered", stats.Filtered).
		Int("clusters", stats.Clusters).
		Msg("contextual filtering finished")
	return kept, stats
}

// BuildClusters groups records around input-order seeds: the first
// unclaimed record opens a cluster and every later unclaimed record whose
// similarity to that seed meets the threshold joins it. Membership is
// decided against the seed only, never between members, mirroring the
// duplicate clustering rule.
func BuildClusters(records []scoring.Record, threshold float64) []Cluster {
	var clusters []Cluster
	claimed := make([]bool, len(records))

	for i := range records {
		if claimed[i] {
			continue
		}
		claimed[i] = true

		cluster := Cluster{Seed: records[i], Members: []scoring.Record{records[i]}}
		for j := i + 1; j < len(records); j++ {
			if claimed[j] {
				continue
			}
			if Similarity(records[i], records[j]) >= threshold {
				claimed[j] = true
				cluster.Members = append(cluster.Members, records[j])
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}
