package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/phenix995/ai-instagram-organizer/internal/curator"
	"github.com/phenix995/ai-instagram-organizer/internal/dedupe"
	"github.com/phenix995/ai-instagram-organizer/internal/governor"
	"github.com/phenix995/ai-instagram-organizer/internal/grouping"
	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

func scoredRecord(id, tier, category, mood string, composite float64) scoring.Record {
	return scoring.Record{
		PhotoID:   id,
		Tier:      tier,
		Category:  category,
		Mood:      mood,
		Composite: composite,
		SubScores: map[string]float64{
			scoring.MetricTechnical:  composite,
			scoring.MetricVisual:     composite,
			scoring.MetricEngagement: composite,
			scoring.MetricUniqueness: composite,
			scoring.MetricStory:      composite,
		},
	}
}

func post(strategy string, ids ...string) curator.Post {
	records := make([]scoring.Record, len(ids))
	for i, id := range ids {
		records[i] = scoring.Record{PhotoID: id}
	}
	return curator.Post{
		ID:       strategy + "-" + ids[0],
		Strategy: strategy,
		Name:     strategy + "_Post_1",
		Records:  records,
	}
}

func testInput() Input {
	return Input{
		Records: []scoring.Record{
			scoredRecord("a", scoring.TierPremium, "travel", "calm", 9.0),
			scoredRecord("b", scoring.TierExcellent, "travel", "happy", 8.0),
			scoredRecord("c", scoring.TierGood, "food", "calm", 7.0),
			scoredRecord("d", scoring.TierAverage, "food", "moody", 5.0),
		},
		Plan: curator.Plan{
			Premium:       []curator.Post{post(curator.StrategyPremium, "a", "b")},
			Chronological: []curator.Post{post(curator.StrategyChronological, "c", "d")},
		},
		PostSize: 2,
		Stages: Stages{
			Dedupe:   dedupe.Stats{Input: 10, Unique: 7, Duplicates: 3},
			Scoring:  scoring.Stats{Processed: 7, Scored: 4, ReadFailures: 1, RemoteFailures: 2},
			Grouping: grouping.Stats{Input: 4, Kept: 4},
			Curation: curator.Stats{Worthy: 3, TotalPosts: 2, PhotosUsed: 4},
		},
		Governor: governor.Snapshot{CircuitState: "CLOSED", ThrottleFactor: 0.7, Successes: 4, Failures: 2},
		Usage:    UsageInfo{Provider: "fake-model", InputTokens: 1000, OutputTokens: 200, TotalCostUSD: 0.05},
	}
}

func TestBuild_SummaryAndDistributions(t *testing.T) {
	r := Build(testInput())

	if r.GeneratedAt.IsZero() {
		t.Error("expected GeneratedAt to be set")
	}
	want := Summary{
		TotalPhotosAnalyzed: 4,
		TotalPostsCreated:   2,
		PhotosUsed:          4,
		AvgCompositeScore:   7.25,
	}
	if r.Summary != want {
		t.Errorf("summary = %+v, want %+v", r.Summary, want)
	}

	wantTiers := map[string]int{"premium": 1, "excellent": 1, "good": 1, "average": 1}
	if !reflect.DeepEqual(r.TierDistribution, wantTiers) {
		t.Errorf("tiers = %v, want %v", r.TierDistribution, wantTiers)
	}
	wantCategories := map[string]int{"travel": 2, "food": 2}
	if !reflect.DeepEqual(r.CategoryDistribution, wantCategories) {
		t.Errorf("categories = %v, want %v", r.CategoryDistribution, wantCategories)
	}
	wantMoods := map[string]int{"calm": 2, "happy": 1, "moody": 1}
	if !reflect.DeepEqual(r.MoodDistribution, wantMoods) {
		t.Errorf("moods = %v, want %v", r.MoodDistribution, wantMoods)
	}
	for _, metric := range metricOrder {
		if r.AverageSubScores[metric] != 7.25 {
			t.Errorf("average %s = %v, want 7.25", metric, r.AverageSubScores[metric])
		}
	}
}

func TestBuild_StrategiesFromPlan(t *testing.T) {
	r := Build(testInput())

	want := map[string]StrategyInfo{
		curator.StrategyPremium:       {Count: 1, PhotosPerPost: 2, TotalPhotos: 2},
		curator.StrategyChronological: {Count: 1, PhotosPerPost: 2, TotalPhotos: 2},
	}
	if !reflect.DeepEqual(r.Strategies, want) {
		t.Errorf("strategies = %v, want %v", r.Strategies, want)
	}
}

func TestBuild_DropsDerivedFromStages(t *testing.T) {
	r := Build(testInput())

	want := map[string]int{
		"duplicate":          3,
		"context_similar":    0,
		"read_failure":       1,
		"remote_failure":     2,
		"malformed_response": 0,
	}
	if !reflect.DeepEqual(r.Drops, want) {
		t.Errorf("drops = %v, want %v", r.Drops, want)
	}
}

func TestBuild_EmptyRun(t *testing.T) {
	r := Build(Input{})

	if r.Summary.AvgCompositeScore != 0 {
		t.Errorf("average score = %v, want 0", r.Summary.AvgCompositeScore)
	}
	if len(r.AverageSubScores) != 0 {
		t.Errorf("expected no sub-score averages, got %v", r.AverageSubScores)
	}
	if r.Summary.TotalPostsCreated != 0 || len(r.Strategies) != 0 {
		t.Errorf("expected no posts, got %+v", r.Summary)
	}
}

func TestRenderText(t *testing.T) {
	text := string(Build(testInput()).renderText())

	if !strings.HasPrefix(text, "=== ENHANCED INSTAGRAM ANALYTICS REPORT ===\n\n") {
		t.Errorf("unexpected report header:\n%s", text)
	}
	for _, line := range []string{
		"Total Photos Analyzed: 4",
		"Average Quality Score: 7.25/10",
		"  Premium: 1 photos (25.0%)",
		"  Food: 2 photos (50.0%)",
		"  Premium_Showcase: 1 posts (2 photos)",
	} {
		if !strings.Contains(text, line) {
			t.Errorf("report missing %q:\n%s", line, text)
		}
	}

	// Categories tie on count, so they fall back to name order.
	if strings.Index(text, "Food: 2") > strings.Index(text, "Travel: 2") {
		t.Errorf("categories out of order:\n%s", text)
	}
	if strings.Index(text, "Premium: 1") > strings.Index(text, "Excellent: 1") {
		t.Errorf("tiers out of order:\n%s", text)
	}
}

func TestWriteFiles(t *testing.T) {
	built := Build(testInput())
	dir := filepath.Join(t.TempDir(), "Analytics")

	if err := built.WriteFiles(dir); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, jsonFileName))
	if err != nil {
		t.Fatalf("reading JSON report: %v", err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshaling JSON report: %v", err)
	}
	if loaded.Summary != built.Summary {
		t.Errorf("loaded summary = %+v, want %+v", loaded.Summary, built.Summary)
	}
	if loaded.Governor.CircuitState != "CLOSED" {
		t.Errorf("loaded circuit state = %q, want CLOSED", loaded.Governor.CircuitState)
	}

	text, err := os.ReadFile(filepath.Join(dir, textFileName))
	if err != nil {
		t.Fatalf("reading text report: %v", err)
	}
	if !strings.Contains(string(text), "QUALITY TIER DISTRIBUTION:") {
		t.Errorf("unexpected text report:\n%s", text)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	Build(testInput()).WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{
		"Photos analyzed:",
		"STAGE",
		"dedupe",
		"3 duplicates, 0 undecodable",
		"DROP REASON",
		"duplicate",
		"read_failure",
		"Circuit state:",
		"CLOSED",
		"Estimated cost:",
		"$0.0500",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "malformed_response") {
		t.Errorf("zero drop reason should be omitted:\n%s", out)
	}
}

func TestWriteSummary_NoDropsOmitsSection(t *testing.T) {
	in := testInput()
	in.Stages = Stages{}

	var buf bytes.Buffer
	Build(in).WriteSummary(&buf)

	if strings.Contains(buf.String(), "DROP REASON") {
		t.Errorf("expected no drop section:\n%s", buf.String())
	}
}

func TestSortedByCount(t *testing.T) {
	got := sortedByCount(map[string]int{"travel": 3, "food": 3, "portrait": 5})
	want := []string{"portrait", "food", "travel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sortedByCount() = %v, want %v", got, want)
	}
}

func TestCapitalize(t *testing.T) {
	cases := map[string]string{
		"premium": "Premium",
		"FOOD":    "Food",
		"":        "",
	}
	for in, want := range cases {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}
