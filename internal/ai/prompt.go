package ai

import (
	_ "embed"
	"fmt"
)

//go:embed prompts/score_photo.txt
var scorePhotoPrompt string

//go:embed prompts/score_batch.txt
var scoreBatchPrompt string

// uploadMaxDim caps the longest image side before upload to keep token
// costs down.
const uploadMaxDim = 800

// buildScorePrompt returns the embedded single-photo scoring prompt.
func buildScorePrompt() string {
	return scorePhotoPrompt
}

// buildBatchPrompt returns the multi-image scoring prompt for a request
// carrying imageCount images.
func buildBatchPrompt(imageCount int) string {
	return fmt.Sprintf(scoreBatchPrompt, imageCount, imageCount, imageCount)
}
