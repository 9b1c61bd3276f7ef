package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider scores photos through the Gemini API. It also
// implements BatchScorer: several images ride in one request and the
// model answers with a JSON array.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	tracker usageTracker
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, singlePricing, batchPricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:  client,
		model:   model,
		tracker: newUsageTracker(singlePricing, batchPricing),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.model
}

func (p *GeminiProvider) GetUsage() Usage {
	return p.tracker.snapshot()
}

func (p *GeminiProvider) ResetUsage() {
	p.tracker.reset()
}

func (p *GeminiProvider) SetBatchMode(enabled bool) {
	p.tracker.setBatchMode(enabled)
}

func (p *GeminiProvider) ScorePhoto(ctx context.Context, imageData []byte) (string, error) {
	resized, err := ResizeImage(imageData, uploadMaxDim)
	if err != nil {
		return "", fmt.Errorf("failed to resize image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildScorePrompt()},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.3),
		MaxOutputTokens:  1024,
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.tracker.add(int(result.UsageMetadata.PromptTokenCount), int(result.UsageMetadata.CandidatesTokenCount))
	}

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}

	return content, nil
}

func (p *GeminiProvider) ScoreBatch(ctx context.Context, images [][]byte) (string, error) {
	if len(images) == 0 {
		return "", errors.New("no images provided")
	}

	parts := []*genai.Part{{Text: buildBatchPrompt(len(images))}}
	for i, img := range images {
		resized, err := ResizeImage(img, uploadMaxDim)
		if err != nil {
			return "", fmt.Errorf("failed to resize image %d: %w", i, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}})
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
		MaxOutputTokens:  4096,
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.tracker.add(int(result.UsageMetadata.PromptTokenCount), int(result.UsageMetadata.CandidatesTokenCount))
	}

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}

	return content, nil
}
