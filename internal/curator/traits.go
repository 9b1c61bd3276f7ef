package curator

import (
	"strings"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

var (
	indoorWords = []string{"indoor", "inside", "room", "kitchen", "restaurant"}
	urbanWords  = []string{"city", "urban", "street", "building"}
	natureWords = []string{"nature", "forest", "mountain", "beach", "lake"}

	goldenHourWords = []string{"golden hour", "sunset", "sunrise"}
	blueHourWords   = []string{"blue hour", "twilight", "dusk"}
	nightWords      = []string{"night", "dark", "evening"}
	middayWords     = []string{"bright", "midday", "noon"}
)

// Setting derives where a photo was taken from its location text:
// indoor, urban, nature or outdoor.
func Setting(r scoring.Record) string {
	location := strings.ToLower(r.LocationText)

	switch {
	case containsAny(location, indoorWords):
		return "indoor"
	case containsAny(location, urbanWords):
		return "urban"
	case containsAny(location, natureWords):
		return "nature"
	default:
		return "outdoor"
	}
}

// TimeOfDay derives the lighting period from the strengths, location and
// time-of-day hints combined: golden_hour, blue_hour, night, midday or
// unknown.
func TimeOfDay(r scoring.Record) string {
	combined := strings.ToLower(strings.Join(r.Strengths, " ") + r.LocationText + r.TimeIndicators)

	switch {
	case containsAny(combined, goldenHourWords):
		return "golden_hour"
	case containsAny(combined, blueHourWords):
		return "blue_hour"
	case containsAny(combined, nightWords):
		return "night"
	case containsAny(combined, middayWords):
		return "midday"
	default:
		return "unknown"
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
