package scoring

import (
	"errors"
	"testing"
)

const validResponse = `{
	"technical_score": 7,
	"visual_appeal": 8,
	"engagement_score": 6,
	"uniqueness": 5,
	"story_potential": 7,
	"category": "portrait",
	"subcategory": "casual_portrait",
	"location": "outdoor setting with mountains",
	"mood": "peaceful",
	"strengths": ["good lighting"],
	"people_present": "1"
}`

func TestParseEvaluation_Strict(t *testing.T) {
	eval, err := ParseEvaluation(validResponse)
	if err != nil {
		t.Fatalf("ParseEvaluation failed: %v", err)
	}

	if eval.TechnicalScore == nil || *eval.TechnicalScore != 7 {
		t.Errorf("TechnicalScore = %v; want 7", eval.TechnicalScore)
	}
	if eval.Category != "portrait" {
		t.Errorf("Category = %q; want portrait", eval.Category)
	}
	if eval.Location != "outdoor setting with mountains" {
		t.Errorf("Location = %q", eval.Location)
	}
	if eval.PeoplePresent.Count() != 1 {
		t.Errorf("people count = %d; want 1", eval.PeoplePresent.Count())
	}
}

func TestParseEvaluation_MarkdownFences(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"

	eval, err := ParseEvaluation(fenced)
	if err != nil {
		t.Fatalf("ParseEvaluation failed on fenced response: %v", err)
	}
	if eval.Mood != "peaceful" {
		t.Errorf("Mood = %q; want peaceful", eval.Mood)
	}
}

func TestParseEvaluation_ProseWrapped(t *testing.T) {
	wrapped := "Here is the analysis you asked for:\n" + validResponse + "\nHope that helps!"

	eval, err := ParseEvaluation(wrapped)
	if err != nil {
		t.Fatalf("ParseEvaluation failed on prose-wrapped response: %v", err)
	}
	if eval.VisualAppeal == nil || *eval.VisualAppeal != 8 {
		t.Errorf("VisualAppeal = %v; want 8", eval.VisualAppeal)
	}
}

func TestParseEvaluation_MissingFieldsStillParses(t *testing.T) {
	eval, err := ParseEvaluation(`{"technical_score": 7, "engagement_score": 6}`)
	if err != nil {
		t.Fatalf("ParseEvaluation failed: %v", err)
	}
	if eval.VisualAppeal != nil {
		t.Errorf("VisualAppeal = %v; want nil for absent field", *eval.VisualAppeal)
	}
}

func TestParseEvaluation_TruncatedSalvage(t *testing.T) {
	// Cut off mid-string, not valid JSON even after extraction.
	truncated := `{"technical_score": 7.5, "visual_appeal": 8, "category": "travel", "mood": "adven`

	eval, err := ParseEvaluation(truncated)
	if err != nil {
		t.Fatalf("expected salvage to recover fields, got %v", err)
	}

	if eval.TechnicalScore == nil || *eval.TechnicalScore != 7.5 {
		t.Errorf("TechnicalScore = %v; want 7.5", eval.TechnicalScore)
	}
	if eval.VisualAppeal == nil || *eval.VisualAppeal != 8 {
		t.Errorf("VisualAppeal = %v; want 8", eval.VisualAppeal)
	}
	if eval.Category != "travel" {
		t.Errorf("Category = %q; want travel", eval.Category)
	}
	// The mood value was cut before its closing quote.
	if eval.Mood != "" {
		t.Errorf("Mood = %q; want empty", eval.Mood)
	}
}

func TestParseEvaluation_Garbage(t *testing.T) {
	_, err := ParseEvaluation("I cannot analyze this image.")
	if err == nil {
		t.Fatal("expected error for unusable response")
	}

	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T; want *MalformedResponseError", err)
	}
}

func TestParseEvaluation_Empty(t *testing.T) {
	var malformed *MalformedResponseError
	if _, err := ParseEvaluation(""); !errors.As(err, &malformed) {
		t.Fatalf("error for empty response = %v; want MalformedResponseError", err)
	}
}

func TestParseBatchEvaluations_Array(t *testing.T) {
	raw := `[
		{"technical_score": 7, "category": "travel"},
		{"technical_score": 4, "category": "food"}
	]`

	evals, err := ParseBatchEvaluations(raw, 2)
	if err != nil {
		t.Fatalf("ParseBatchEvaluations failed: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("len(evals) = %d; want 2", len(evals))
	}
	if evals[0].Category != "travel" || evals[1].Category != "food" {
		t.Errorf("categories = %q, %q", evals[0].Category, evals[1].Category)
	}
}

func TestParseBatchEvaluations_FencedArray(t *testing.T) {
	raw := "```json\n[{\"technical_score\": 7}]\n```"

	evals, err := ParseBatchEvaluations(raw, 1)
	if err != nil {
		t.Fatalf("ParseBatchEvaluations failed: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("len(evals) = %d; want 1", len(evals))
	}
}

func TestParseBatchEvaluations_SingleObject(t *testing.T) {
	evals, err := ParseBatchEvaluations(`{"technical_score": 7}`, 3)
	if err != nil {
		t.Fatalf("ParseBatchEvaluations failed: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("len(evals) = %d; want 1 for single-object response", len(evals))
	}
}

func TestParseBatchEvaluations_CapsAtWant(t *testing.T) {
	raw := `[{"technical_score": 7}, {"technical_score": 6}, {"technical_score": 5}]`

	evals, err := ParseBatchEvaluations(raw, 2)
	if err != nil {
		t.Fatalf("ParseBatchEvaluations failed: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("len(evals) = %d; want 2 after cap", len(evals))
	}
}

func TestParseBatchEvaluations_Garbage(t *testing.T) {
	var malformed *MalformedResponseError
	if _, err := ParseBatchEvaluations("no json here", 2); !errors.As(err, &malformed) {
		t.Fatalf("error = %v; want MalformedResponseError", err)
	}
}
