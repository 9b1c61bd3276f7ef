package grouping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// Attribute weights of the contextual similarity score.
const (
	categoryWeight    = 0.25
	subcategoryWeight = 0.15
	locationWeight    = 0.30
	moodWeight        = 0.20
	peopleWeight      = 0.10
)

// Similarity scores how contextually alike two records are, in [0, 1]:
// binary category, subcategory, mood and people-count matches plus word
// overlap of the location texts, each weighted.
func Similarity(a, b scoring.Record) float64 {
	var score float64
	if a.Category == b.Category {
		score += categoryWeight
	}
	if a.Subcategory == b.Subcategory {
		score += subcategoryWeight
	}
	score += locationWeight * textOverlap(a.LocationText, b.LocationText)
	if a.Mood == b.Mood {
		score += moodWeight
	}
	if a.PeopleCount == b.PeopleCount {
		score += peopleWeight
	}
	return score
}

// textOverlap is the Jaccard similarity of the two token sets. Empty text
// on either side scores zero.
func textOverlap(a, b string) float64 {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

// tokenize lower-cases, folds diacritics out (e.g. "café" -> "cafe") and
// splits on anything that is not a letter or digit.
func tokenize(text string) map[string]bool {
	text = strings.ToLower(removeDiacritics(text))

	tokens := map[string]bool{}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		tokens[w] = true
	}
	return tokens
}

func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}
