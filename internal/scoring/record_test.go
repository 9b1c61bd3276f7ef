package scoring

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/phenix995/ai-instagram-organizer/internal/photo"
)

func floatPtr(v float64) *float64 {
	return &v
}

func testPhoto() photo.Photo {
	return photo.Photo{
		ID:          "photo-1",
		Path:        "/photos/photo-1.jpg",
		CaptureTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewRecord_Composite(t *testing.T) {
	eval := &Evaluation{
		TechnicalScore:  floatPtr(7),
		VisualAppeal:    floatPtr(8),
		EngagementScore: floatPtr(6),
		Uniqueness:      floatPtr(5),
		StoryPotential:  floatPtr(7),
		Category:        "portrait",
		Mood:            "peaceful",
	}

	record := NewRecord(testPhoto(), eval)

	// 7*0.15 + 8*0.25 + 6*0.30 + 5*0.20 + 7*0.10 = 6.55
	if record.Composite != 6.55 {
		t.Errorf("Composite = %v; want 6.55", record.Composite)
	}
	if record.Tier != TierGood {
		t.Errorf("Tier = %q; want %q", record.Tier, TierGood)
	}
	if record.Worthy {
		t.Error("Worthy = true; want false for composite 6.55")
	}
}

func TestNewRecord_MissingVisualAppealDefaults(t *testing.T) {
	// A response missing visual_appeal computes the composite with 5.0
	// substituted for that field.
	eval := &Evaluation{
		TechnicalScore:  floatPtr(7),
		EngagementScore: floatPtr(6),
		Uniqueness:      floatPtr(5),
		StoryPotential:  floatPtr(7),
	}

	record := NewRecord(testPhoto(), eval)

	if record.SubScores[MetricVisual] != defaultScore {
		t.Errorf("SubScores[visual_appeal] = %v; want %v", record.SubScores[MetricVisual], defaultScore)
	}
	// 7*0.15 + 5*0.25 + 6*0.30 + 5*0.20 + 7*0.10 = 5.80
	if record.Composite != 5.8 {
		t.Errorf("Composite = %v; want 5.8", record.Composite)
	}
}

func TestNewRecord_AllDefaults(t *testing.T) {
	record := NewRecord(testPhoto(), &Evaluation{})

	if record.Composite != 5.0 {
		t.Errorf("Composite = %v; want 5.0", record.Composite)
	}
	if record.Tier != TierAverage {
		t.Errorf("Tier = %q; want %q", record.Tier, TierAverage)
	}
	if record.Category != "unknown" {
		t.Errorf("Category = %q; want unknown", record.Category)
	}
	if record.Mood != "neutral" {
		t.Errorf("Mood = %q; want neutral", record.Mood)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		composite float64
		tier      string
	}{
		{10, TierPremium},
		{8.5, TierPremium},
		{8.49, TierExcellent},
		{7.5, TierExcellent},
		{7.49, TierGood},
		{6.0, TierGood},
		{5.99, TierAverage},
		{4.0, TierAverage},
		{3.99, TierPoor},
		{0, TierPoor},
	}

	for _, tc := range tests {
		if got := tierFor(tc.composite); got != tc.tier {
			t.Errorf("tierFor(%v) = %q; want %q", tc.composite, got, tc.tier)
		}
	}
}

func TestNewRecord_UniformScores(t *testing.T) {
	// Identical sub-scores make the composite equal the score since the
	// weights sum to 1.
	tests := []struct {
		score float64
		tier  string
	}{
		{9.0, TierPremium},
		{8.0, TierExcellent},
		{6.5, TierGood},
		{4.5, TierAverage},
		{2.0, TierPoor},
	}

	for _, tc := range tests {
		eval := &Evaluation{
			TechnicalScore:  floatPtr(tc.score),
			VisualAppeal:    floatPtr(tc.score),
			EngagementScore: floatPtr(tc.score),
			Uniqueness:      floatPtr(tc.score),
			StoryPotential:  floatPtr(tc.score),
		}
		record := NewRecord(testPhoto(), eval)
		if math.Abs(record.Composite-tc.score) > 0.005 {
			t.Errorf("Composite for uniform %v = %v", tc.score, record.Composite)
		}
		if record.Tier != tc.tier {
			t.Errorf("Tier for composite %v = %q; want %q", tc.score, record.Tier, tc.tier)
		}
	}
}

func TestNewRecord_Worthy(t *testing.T) {
	tests := []struct {
		score  float64
		worthy bool
	}{
		{9.0, true},  // premium
		{8.0, true},  // excellent
		{7.2, true},  // good tier but composite above 7.0
		{6.5, false}, // good tier below 7.0
		{3.0, false}, // poor
	}

	for _, tc := range tests {
		eval := &Evaluation{
			TechnicalScore:  floatPtr(tc.score),
			VisualAppeal:    floatPtr(tc.score),
			EngagementScore: floatPtr(tc.score),
			Uniqueness:      floatPtr(tc.score),
			StoryPotential:  floatPtr(tc.score),
		}
		record := NewRecord(testPhoto(), eval)
		if record.Worthy != tc.worthy {
			t.Errorf("Worthy for composite %v = %v; want %v", tc.score, record.Worthy, tc.worthy)
		}
	}
}

func TestFlexCount_Count(t *testing.T) {
	tests := []struct {
		value    string
		expected int
	}{
		{"", 0},
		{"0", 0},
		{"1", 1},
		{"2-5", 3},
		{"6+", 6},
		{"many people", 6},
		{"3", 3},
		{"none", 0},
		{"1 person", 1},
	}

	for _, tc := range tests {
		if got := FlexCount(tc.value).Count(); got != tc.expected {
			t.Errorf("FlexCount(%q).Count() = %d; want %d", tc.value, got, tc.expected)
		}
	}
}

func TestFlexCount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
	}{
		{`{"people_present": "2-5"}`, 3},
		{`{"people_present": 2}`, 2},
		{`{"people_present": null}`, 0},
	}

	for _, tc := range tests {
		var eval Evaluation
		if err := json.Unmarshal([]byte(tc.raw), &eval); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if got := eval.PeoplePresent.Count(); got != tc.expected {
			t.Errorf("people count for %s = %d; want %d", tc.raw, got, tc.expected)
		}
	}
}
