package grouping

import (
	"math"
	"testing"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

func contextRecord(id, category, subcategory, location, mood string, people int) scoring.Record {
	return scoring.Record{
		PhotoID:      id,
		Category:     category,
		Subcategory:  subcategory,
		LocationText: location,
		Mood:         mood,
		PeopleCount:  people,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimilarity_IdenticalContext(t *testing.T) {
	a := contextRecord("a", "travel", "beach", "sunny bali beach", "calm", 1)
	b := contextRecord("b", "travel", "beach", "sunny bali beach", "calm", 1)

	if got := Similarity(a, b); !almostEqual(got, 1.0) {
		t.Errorf("Similarity = %v; want 1.0", got)
	}
}

func TestSimilarity_NothingInCommon(t *testing.T) {
	a := contextRecord("a", "travel", "beach", "sunny beach", "calm", 0)
	b := contextRecord("b", "food", "pasta", "dark cellar", "moody", 3)

	if got := Similarity(a, b); got != 0 {
		t.Errorf("Similarity = %v; want 0", got)
	}
}

func TestSimilarity_PartialLocationOverlap(t *testing.T) {
	// Same category only, plus 2 shared tokens of 5: 0.25 + 0.30*0.4.
	a := contextRecord("a", "travel", "beach", "sunny beach in bali", "calm", 1)
	b := contextRecord("b", "travel", "cliff", "beach bali sunset", "moody", 2)

	if got := Similarity(a, b); !almostEqual(got, 0.37) {
		t.Errorf("Similarity = %v; want 0.37", got)
	}
}

func TestSimilarity_LocationDiacriticsFold(t *testing.T) {
	a := contextRecord("a", "food", "x", "Café René", "warm", 2)
	b := contextRecord("b", "street", "y", "cafe rene", "cold", 4)

	if got := Similarity(a, b); !almostEqual(got, 0.30) {
		t.Errorf("Similarity = %v; want 0.30 (location only)", got)
	}
}

func TestSimilarity_EmptyLocationsScoreZeroOverlap(t *testing.T) {
	a := contextRecord("a", "travel", "beach", "", "calm", 1)
	b := contextRecord("b", "travel", "beach", "", "calm", 1)

	if got := Similarity(a, b); !almostEqual(got, 0.70) {
		t.Errorf("Similarity = %v; want 0.70 (everything but location)", got)
	}
}

func TestTextOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"sunny beach", "sunny beach", 1.0},
		{"sunny beach", "beach sunny", 1.0},
		{"sunny beach", "dark cellar", 0.0},
		{"sunny beach bali", "bali beach sunset", 0.5},
		{"", "sunny beach", 0.0},
		{"sunny beach", "", 0.0},
		{"Joe's diner", "joe s diner", 1.0},
	}
	for _, tc := range cases {
		if got := textOverlap(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Errorf("textOverlap(%q, %q) = %v; want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
