// Package report assembles per-run analytics from the pipeline stages
// and writes them out three ways: a JSON document for machines, a
// readable text report next to the organized output and a tabwriter
// summary for the console.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/phenix995/ai-instagram-organizer/internal/curator"
	"github.com/phenix995/ai-instagram-organizer/internal/dedupe"
	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/grouping"
	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

const (
	jsonFileName = "enhanced_analytics.json"
	textFileName = "analytics_report.txt"
)

var tierOrder = []string{
	scoring.TierPremium, scoring.TierExcellent, scoring.TierGood,
	scoring.TierAverage, scoring.TierPoor,
}

var strategyOrder = []string{
	curator.StrategyPremium, curator.StrategyDiverse,
	curator.StrategyTheme, curator.StrategyChronological,
}

var metricOrder = []string{
	scoring.MetricTechnical, scoring.MetricVisual, scoring.MetricEngagement,
	scoring.MetricUniqueness, scoring.MetricStory,
}

var dropReasons = []string{
	"duplicate", "context_similar", "read_failure",
	"remote_failure", "malformed_response",
}

// Report is the per-run analytics document.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`

	TierDistribution     map[string]int     `json:"tier_distribution"`
	CategoryDistribution map[string]int     `json:"category_distribution"`
	MoodDistribution     map[string]int     `json:"mood_distribution"`
	AverageSubScores     map[string]float64 `json:"average_sub_scores"`

	Stages     Stages                  `json:"stages"`
	Drops      map[string]int          `json:"drops_by_reason"`
	Strategies map[string]StrategyInfo `json:"post_strategies"`

	Governor governor.Snapshot `json:"governor"`
	Usage    UsageInfo         `json:"usage"`
}

// Summary mirrors the headline numbers of the console output.
type Summary struct {
	TotalPhotosAnalyzed int     `json:"total_photos_analyzed"`
	TotalPostsCreated   int     `json:"total_posts_created"`
	PhotosUsed          int     `json:"photos_used"`
	AvgCompositeScore   float64 `json:"avg_composite_score"`
}

// Stages collects the per-stage counters of one run.
type Stages struct {
	Dedupe   dedupe.Stats   `json:"dedupe"`
	Scoring  scoring.Stats  `json:"scoring"`
	Grouping grouping.Stats `json:"grouping"`
	Curation curator.Stats  `json:"curation"`
}

// StrategyInfo describes the posts one assembly strategy produced.
type StrategyInfo struct {
	Count         int `json:"count"`
	PhotosPerPost int `json:"photos_per_post"`
	TotalPhotos   int `json:"total_photos"`
}

// UsageInfo is the model usage and estimated cost of the run.
type UsageInfo struct {
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Input is everything Build needs from the pipeline. Records are the
// scored photos that reached curation, so the distributions cover every
// photo that survived deduplication and contextual filtering.
type Input struct {
	Records  []scoring.Record
	Plan     curator.Plan
	PostSize int
	Stages   Stages
	Governor governor.Snapshot
	Usage    UsageInfo
}

// Build computes the run report. Drop counters are derived from the
// stage stats, so they always agree with the per-stage numbers.
func Build(in Input) Report {
	tiers := map[string]int{}
	categories := map[string]int{}
	moods := map[string]int{}
	subTotals := map[string]float64{}
	var compositeTotal float64

	for _, r := range in.Records {
		tiers[r.Tier]++
		categories[r.Category]++
		moods[r.Mood]++
		compositeTotal += r.Composite
		for _, metric := range metricOrder {
			subTotals[metric] += r.SubScores[metric]
		}
	}

	avgComposite := 0.0
	avgSub := map[string]float64{}
	if len(in.Records) > 0 {
		n := float64(len(in.Records))
		avgComposite = round2(compositeTotal / n)
		for _, metric := range metricOrder {
			avgSub[metric] = round2(subTotals[metric] / n)
		}
	}

	strategies := map[string]StrategyInfo{}
	totalPosts := 0
	photosUsed := 0
	for _, post := range in.Plan.All() {
		totalPosts++
		photosUsed += len(post.Records)
		info := strategies[post.Strategy]
		info.Count++
		info.PhotosPerPost = in.PostSize
		info.TotalPhotos += len(post.Records)
		strategies[post.Strategy] = info
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		Summary: Summary{
			TotalPhotosAnalyzed: len(in.Records),
			TotalPostsCreated:   totalPosts,
			PhotosUsed:          photosUsed,
			AvgCompositeScore:   avgComposite,
		},
		TierDistribution:     tiers,
		CategoryDistribution: categories,
		MoodDistribution:     moods,
		AverageSubScores:     avgSub,
		Stages:               in.Stages,
		Drops: map[string]int{
			"duplicate":          in.Stages.Dedupe.Duplicates,
			"context_similar":    in.Stages.Grouping.Filtered,
			"read_failure":       in.Stages.Scoring.ReadFailures,
			"remote_failure":     in.Stages.Scoring.RemoteFailures,
			"malformed_response": in.Stages.Scoring.MalformedResponses,
		},
		Strategies: strategies,
		Governor:   in.Governor,
		Usage:      in.Usage,
	}
}

// WriteFiles writes the JSON report and the readable text report into
// dir, creating it if needed.
func (r Report) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create analytics directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, jsonFileName), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonFileName, err)
	}

	if err := os.WriteFile(filepath.Join(dir, textFileName), r.renderText(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", textFileName, err)
	}
	return nil
}

func (r Report) renderText() []byte {
	var buf bytes.Buffer
	total := r.Summary.TotalPhotosAnalyzed

	buf.WriteString("=== ENHANCED INSTAGRAM ANALYTICS REPORT ===\n\n")
	fmt.Fprintf(&buf, "Total Photos Analyzed: %d\n", total)
	fmt.Fprintf(&buf, "Total Posts Created: %d\n", r.Summary.TotalPostsCreated)
	fmt.Fprintf(&buf, "Photos Used: %d\n", r.Summary.PhotosUsed)
	fmt.Fprintf(&buf, "Average Quality Score: %.2f/10\n\n", r.Summary.AvgCompositeScore)

	buf.WriteString("QUALITY TIER DISTRIBUTION:\n")
	for _, tier := range tierOrder {
		count := r.TierDistribution[tier]
		if count == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %s: %d photos (%.1f%%)\n", capitalize(tier), count, share(count, total))
	}

	buf.WriteString("\nCATEGORY DISTRIBUTION:\n")
	for _, category := range sortedByCount(r.CategoryDistribution) {
		count := r.CategoryDistribution[category]
		fmt.Fprintf(&buf, "  %s: %d photos (%.1f%%)\n", capitalize(category), count, share(count, total))
	}

	buf.WriteString("\nMOOD DISTRIBUTION:\n")
	for _, mood := range sortedByCount(r.MoodDistribution) {
		count := r.MoodDistribution[mood]
		fmt.Fprintf(&buf, "  %s: %d photos (%.1f%%)\n", capitalize(mood), count, share(count, total))
	}

	buf.WriteString("\nPOST STRATEGIES:\n")
	for _, strategy := range strategyOrder {
		info, ok := r.Strategies[strategy]
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "  %s: %d posts (%d photos)\n", strategy, info.Count, info.TotalPhotos)
	}

	return buf.Bytes()
}

// WriteSummary prints the run summary to out.
func (r Report) WriteSummary(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	total := r.Summary.TotalPhotosAnalyzed

	fmt.Fprintf(w, "Photos analyzed:\t%d\n", total)
	fmt.Fprintf(w, "Posts created:\t%d\n", r.Summary.TotalPostsCreated)
	fmt.Fprintf(w, "Photos used:\t%d\n", r.Summary.PhotosUsed)
	fmt.Fprintf(w, "Average score:\t%.2f/10\n", r.Summary.AvgCompositeScore)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STAGE\tIN\tKEPT\tNOTE")
	fmt.Fprintln(w, "-----\t--\t----\t----")
	d := r.Stages.Dedupe
	fmt.Fprintf(w, "dedupe\t%d\t%d\t%d duplicates, %d undecodable\n",
		d.Input, d.Unique, d.Duplicates, d.DecodeFailures)
	s := r.Stages.Scoring
	fmt.Fprintf(w, "scoring\t%d\t%d\t%d failed\n", s.Processed, s.Scored, s.Processed-s.Scored)
	g := r.Stages.Grouping
	fmt.Fprintf(w, "grouping\t%d\t%d\t%d collapsed\n", g.Input, g.Kept, g.Filtered)
	c := r.Stages.Curation
	fmt.Fprintf(w, "curation\t%d\t%d\t%d posts\n", c.Worthy, c.PhotosUsed, c.TotalPosts)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "TIER\tPHOTOS\tSHARE")
	fmt.Fprintln(w, "----\t------\t-----")
	for _, tier := range tierOrder {
		count := r.TierDistribution[tier]
		if count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", tier, count, share(count, total))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CATEGORY\tPHOTOS\tSHARE")
	fmt.Fprintln(w, "--------\t------\t-----")
	for _, category := range sortedByCount(r.CategoryDistribution) {
		count := r.CategoryDistribution[category]
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", category, count, share(count, total))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MOOD\tPHOTOS\tSHARE")
	fmt.Fprintln(w, "----\t------\t-----")
	for _, mood := range sortedByCount(r.MoodDistribution) {
		count := r.MoodDistribution[mood]
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", mood, count, share(count, total))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "METRIC\tAVERAGE")
	fmt.Fprintln(w, "------\t-------")
	for _, metric := range metricOrder {
		if avg, ok := r.AverageSubScores[metric]; ok {
			fmt.Fprintf(w, "%s\t%.2f\n", metric, avg)
		}
	}
	fmt.Fprintln(w)

	if dropped := totalDrops(r.Drops); dropped > 0 {
		fmt.Fprintln(w, "DROP REASON\tPHOTOS")
		fmt.Fprintln(w, "-----------\t------")
		for _, reason := range dropReasons {
			if count := r.Drops[reason]; count > 0 {
				fmt.Fprintf(w, "%s\t%d\n", reason, count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Circuit state:\t%s\n", r.Governor.CircuitState)
	fmt.Fprintf(w, "Throttle:\t%.2f\n", r.Governor.ThrottleFactor)
	fmt.Fprintf(w, "Requests:\t%d ok, %d failed\n", r.Governor.Successes, r.Governor.Failures)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Provider:\t%s\n", r.Usage.Provider)
	fmt.Fprintf(w, "Tokens:\t%d in, %d out\n", r.Usage.InputTokens, r.Usage.OutputTokens)
	fmt.Fprintf(w, "Estimated cost:\t$%.4f\n", r.Usage.TotalCostUSD)

	w.Flush()
}

func totalDrops(drops map[string]int) int {
	total := 0
	for _, count := range drops {
		total += count
	}
	return total
}

// sortedByCount orders keys by descending count, ties by name.
func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
