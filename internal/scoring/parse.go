package scoring

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ParseEvaluation turns a raw model response into an Evaluation. It
// tries strict JSON first, then strips markdown fences, then cuts out
// the first balanced JSON object, and finally salvages individual
// fields by pattern. Only when all of that fails does it report a
// MalformedResponseError.
func ParseEvaluation(raw string) (*Evaluation, error) {
	cleaned := stripFences(raw)

	var eval Evaluation
	if err := json.Unmarshal([]byte(cleaned), &eval); err == nil {
		return &eval, nil
	}

	extracted := extractJSON(cleaned, '{', '}')
	if err := json.Unmarshal([]byte(extracted), &eval); err == nil {
		return &eval, nil
	}

	if salvaged, ok := salvageEvaluation(cleaned); ok {
		return salvaged, nil
	}

	return nil, &MalformedResponseError{Raw: raw}
}

// ParseBatchEvaluations parses a multi-image response into at most want
// evaluations, in image order. A single-object response counts as an
// array of one.
func ParseBatchEvaluations(raw string, want int) ([]*Evaluation, error) {
	cleaned := stripFences(raw)

	var evals []*Evaluation
	if err := json.Unmarshal([]byte(cleaned), &evals); err == nil {
		return capEvals(evals, want), nil
	}

	extracted := extractJSON(cleaned, '[', ']')
	if err := json.Unmarshal([]byte(extracted), &evals); err == nil {
		return capEvals(evals, want), nil
	}

	var one Evaluation
	if err := json.Unmarshal([]byte(extractJSON(cleaned, '{', '}')), &one); err == nil {
		return []*Evaluation{&one}, nil
	}

	return nil, &MalformedResponseError{Raw: raw}
}

func capEvals(evals []*Evaluation, want int) []*Evaluation {
	if len(evals) > want {
		return evals[:want]
	}
	return evals
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON cuts the first balanced JSON value delimited by open and
// close out of content. Returns content unchanged when no opener is
// found.
func extractJSON(content string, open, close byte) string {
	start := strings.IndexByte(content, open)
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return content[start:]
}

var (
	numberFieldRe = regexp.MustCompile(`"(technical_score|visual_appeal|engagement_score|uniqueness|story_potential)"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	stringFieldRe = regexp.MustCompile(`"(category|subcategory|location|mood|best_time|caption_style|hashtag_focus|people_present|time_of_day_indicators)"\s*:\s*"([^"]*)"`)
)

// salvageEvaluation pulls recognizable fields out of a response that is
// not valid JSON, for example one truncated mid-string. At least one
// sub-score must be present for the salvage to count.
func salvageEvaluation(content string) (*Evaluation, bool) {
	numbers := numberFieldRe.FindAllStringSubmatch(content, -1)
	if len(numbers) == 0 {
		return nil, false
	}

	eval := &Evaluation{}
	for _, m := range numbers {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		value := v
		switch m[1] {
		case MetricTechnical:
			eval.TechnicalScore = &value
		case MetricVisual:
			eval.VisualAppeal = &value
		case MetricEngagement:
			eval.EngagementScore = &value
		case MetricUniqueness:
			eval.Uniqueness = &value
		case MetricStory:
			eval.StoryPotential = &value
		}
	}

	for _, m := range stringFieldRe.FindAllStringSubmatch(content, -1) {
		switch m[1] {
		case "category":
			eval.Category = m[2]
		case "subcategory":
			eval.Subcategory = m[2]
		case "location":
			eval.Location = m[2]
		case "mood":
			eval.Mood = m[2]
		case "best_time":
			eval.BestTime = m[2]
		case "caption_style":
			eval.CaptionStyle = m[2]
		case "hashtag_focus":
			eval.HashtagFocus = m[2]
		case "people_present":
			eval.PeoplePresent = FlexCount(m[2])
		case "time_of_day_indicators":
			eval.TimeIndicators = m[2]
		}
	}

	return eval, true
}
