package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phenix995/ai-instagram-organizer/internal/photo"
)

// Metric names used as sub-score keys. They match the JSON fields the
// scoring prompt requests from the model.
const (
	MetricTechnical  = "technical_score"
	MetricVisual     = "visual_appeal"
	MetricEngagement = "engagement_score"
	MetricUniqueness = "uniqueness"
	MetricStory      = "story_potential"
)

// Quality tiers derived from the composite score.
const (
	TierPremium   = "premium"
	TierExcellent = "excellent"
	TierGood      = "good"
	TierAverage   = "average"
	TierPoor      = "poor"
)

// defaultScore substitutes for any numeric field the model left out.
const defaultScore = 5.0

var compositeWeights = map[string]float64{
	MetricTechnical:  0.15,
	MetricVisual:     0.25,
	MetricEngagement: 0.30,
	MetricUniqueness: 0.20,
	MetricStory:      0.10,
}

// Evaluation is the model's parsed answer for one photo. Score fields
// are pointers so an absent field can be told apart from zero and
// replaced with the documented default.
type Evaluation struct {
	TechnicalScore  *float64  `json:"technical_score"`
	VisualAppeal    *float64  `json:"visual_appeal"`
	EngagementScore *float64  `json:"engagement_score"`
	Uniqueness      *float64  `json:"uniqueness"`
	StoryPotential  *float64  `json:"story_potential"`
	Category        string    `json:"category"`
	Subcategory     string    `json:"subcategory"`
	Location        string    `json:"location"`
	Mood            string    `json:"mood"`
	Strengths       []string  `json:"strengths"`
	Weaknesses      []string  `json:"weaknesses"`
	BestTime        string    `json:"best_time"`
	CaptionStyle    string    `json:"caption_style"`
	HashtagFocus    string    `json:"hashtag_focus"`
	PeoplePresent   FlexCount `json:"people_present"`
	TimeIndicators  string    `json:"time_of_day_indicators"`
}

// FlexCount accepts either a JSON string or a number; models are
// inconsistent about how they report people_present.
type FlexCount string

func (f *FlexCount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexCount(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexCount(strconv.Itoa(int(n)))
		return nil
	}
	*f = ""
	return nil
}

// Count maps the model's free-form answer to a people count.
func (f FlexCount) Count() int {
	s := strings.ToLower(strings.TrimSpace(string(f)))
	switch {
	case s == "":
		return 0
	case strings.Contains(s, "6+") || strings.Contains(s, "many"):
		return 6
	case strings.Contains(s, "2-5"):
		return 3
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	if strings.Contains(s, "1") {
		return 1
	}
	return 0
}

// Record is one photo's final scoring outcome. Records are created by
// NewRecord and never mutated afterwards.
type Record struct {
	PhotoID     string    `json:"photo_id"`
	Path        string    `json:"path"`
	CaptureTime time.Time `json:"capture_time"`

	SubScores map[string]float64 `json:"sub_scores"`
	Composite float64            `json:"composite_score"`
	Tier      string             `json:"tier"`
	Worthy    bool               `json:"instagram_worthy"`

	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"`
	Mood         string `json:"mood"`
	LocationText string `json:"location,omitempty"`
	PeopleCount  int    `json:"people_count"`

	Strengths      []string `json:"strengths,omitempty"`
	Weaknesses     []string `json:"weaknesses,omitempty"`
	BestTime       string   `json:"best_time,omitempty"`
	CaptionStyle   string   `json:"caption_style,omitempty"`
	HashtagFocus   string   `json:"hashtag_focus,omitempty"`
	TimeIndicators string   `json:"time_of_day_indicators,omitempty"`
}

// NewRecord builds a Record from a photo and its evaluation. Missing
// numeric fields default to 5.0; the composite is the fixed weighted
// sum of sub-scores and the tier follows the composite breakpoints.
func NewRecord(p photo.Photo, eval *Evaluation) Record {
	sub := map[string]float64{
		MetricTechnical:  scoreOrDefault(eval.TechnicalScore),
		MetricVisual:     scoreOrDefault(eval.VisualAppeal),
		MetricEngagement: scoreOrDefault(eval.EngagementScore),
		MetricUniqueness: scoreOrDefault(eval.Uniqueness),
		MetricStory:      scoreOrDefault(eval.StoryPotential),
	}

	composite := sub[MetricTechnical]*compositeWeights[MetricTechnical] +
		sub[MetricVisual]*compositeWeights[MetricVisual] +
		sub[MetricEngagement]*compositeWeights[MetricEngagement] +
		sub[MetricUniqueness]*compositeWeights[MetricUniqueness] +
		sub[MetricStory]*compositeWeights[MetricStory]

	tier := tierFor(composite)

	category := eval.Category
	if category == "" {
		category = "unknown"
	}
	mood := eval.Mood
	if mood == "" {
		mood = "neutral"
	}

	return Record{
		PhotoID:     p.ID,
		Path:        p.Path,
		CaptureTime: p.CaptureTime,

		SubScores: sub,
		Composite: math.Round(composite*100) / 100,
		Tier:      tier,
		Worthy:    tier == TierPremium || tier == TierExcellent || composite >= 7.0,

		Category:     category,
		Subcategory:  eval.Subcategory,
		Mood:         mood,
		LocationText: eval.Location,
		PeopleCount:  eval.PeoplePresent.Count(),

		Strengths:      eval.Strengths,
		Weaknesses:     eval.Weaknesses,
		BestTime:       eval.BestTime,
		CaptionStyle:   eval.CaptionStyle,
		HashtagFocus:   eval.HashtagFocus,
		TimeIndicators: eval.TimeIndicators,
	}
}

func scoreOrDefault(score *float64) float64 {
	if score == nil {
		return defaultScore
	}
	return *score
}

func tierFor(composite float64) string {
	switch {
	case composite >= 8.5:
		return TierPremium
	case composite >= 7.5:
		return TierExcellent
	case composite >= 6.0:
		return TierGood
	case composite >= 4.0:
		return TierAverage
	default:
		return TierPoor
	}
}
