package grouping

import (
	"sort"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// Selection policies.
const (
	PolicyHighestScore   = "highest_score"
	PolicyMostUnique     = "most_unique"
	PolicyBestTechnical  = "best_technical"
	PolicyBestEngagement = "best_engagement"
)

// Select returns a cluster's winners under the policy, best first, at
// most limit records. Clusters of one pass through unchanged. Ties keep
// input order, so the first of equally ranked members wins. The result
// depends on the cluster alone; no state is carried between calls.
func Select(cluster Cluster, policy string, limit int) []scoring.Record {
	members := cluster.Members
	if limit < 1 {
		limit = 1
	}
	if len(members) <= 1 {
		return append([]scoring.Record(nil), members...)
	}

	idx := make([]int, len(members))
	for i := range idx {
		idx[i] = i
	}

	var less func(a, b int) bool
	switch policy {
	case PolicyMostUnique:
		avg := averageSimilarities(members)
		less = func(a, b int) bool {
			if avg[a] != avg[b] {
				return avg[a] < avg[b]
			}
			return members[a].Composite > members[b].Composite
		}
	case PolicyBestTechnical:
		less = func(a, b int) bool {
			return members[a].SubScores[scoring.MetricTechnical] > members[b].SubScores[scoring.MetricTechnical]
		}
	case PolicyBestEngagement:
		less = func(a, b int) bool {
			return members[a].SubScores[scoring.MetricEngagement] > members[b].SubScores[scoring.MetricEngagement]
		}
	default: // highest_score
		less = func(a, b int) bool {
			return members[a].Composite > members[b].Composite
		}
	}

	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })

	if limit > len(idx) {
		limit = len(idx)
	}
	selected := make([]scoring.Record, 0, limit)
	for _, i := range idx[:limit] {
		selected = append(selected, members[i])
	}
	return selected
}

// averageSimilarities computes each member's mean similarity to the rest
// of the cluster. Callers guarantee at least two members.
func averageSimilarities(members []scoring.Record) []float64 {
	avg := make([]float64, len(members))
	for i := range members {
		var sum float64
		for j := range members {
			if i == j {
				continue
			}
			sum += Similarity(members[i], members[j])
		}
		avg[i] = sum / float64(len(members)-1)
	}
	return avg
}
