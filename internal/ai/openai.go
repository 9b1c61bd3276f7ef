package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider scores photos through the OpenAI chat completions API.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	tracker usageTracker
}

func NewOpenAIProvider(apiKey, model string, singlePricing, batchPricing RequestPricing) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:  &client,
		model:   model,
		tracker: newUsageTracker(singlePricing, batchPricing),
	}
}

func (p *OpenAIProvider) Name() string {
	return p.model
}

func (p *OpenAIProvider) GetUsage() Usage {
	return p.tracker.snapshot()
}

func (p *OpenAIProvider) ResetUsage() {
	p.tracker.reset()
}

func (p *OpenAIProvider) SetBatchMode(enabled bool) {
	p.tracker.setBatchMode(enabled)
}

func (p *OpenAIProvider) ScorePhoto(ctx context.Context, imageData []byte) (string, error) {
	resized, err := ResizeImage(imageData, uploadMaxDim)
	if err != nil {
		return "", fmt.Errorf("failed to resize image: %w", err)
	}

	base64Image := base64.StdEncoding.EncodeToString(resized)
	imageURL := "data:image/jpeg;base64," + base64Image

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(buildScorePrompt()),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(1024),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.tracker.add(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))
	}

	return resp.Choices[0].Message.Content, nil
}
