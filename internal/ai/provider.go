package ai

import (
	"context"
	"sync"
)

// Provider defines the interface for remote vision-model backends.
// ScorePhoto returns the raw model response text; the scoring package
// owns parsing and validation.
type Provider interface {
	Name() string
	ScorePhoto(ctx context.Context, imageData []byte) (string, error)

	// Usage tracking.
	GetUsage() Usage
	ResetUsage()
	SetBatchMode(enabled bool)
}

// BatchScorer is implemented by providers that accept several images in
// a single request. The response is one JSON array covering the images
// in request order.
type BatchScorer interface {
	Provider
	ScoreBatch(ctx context.Context, images [][]byte) (string, error)
}

// RequestPricing holds input/output prices per 1M tokens.
type RequestPricing struct {
	Input  float64
	Output float64
}

// Usage tracks token usage and accumulated cost in USD.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// usageTracker accumulates Usage under a lock. Scoring workers share a
// single provider, so every provider embeds one of these.
type usageTracker struct {
	mu            sync.Mutex
	usage         Usage
	inputPrice    float64 // per 1M tokens
	outputPrice   float64 // per 1M tokens
	singlePricing RequestPricing
	batchPricing  RequestPricing
}

func newUsageTracker(singlePricing, batchPricing RequestPricing) usageTracker {
	return usageTracker{
		inputPrice:    singlePricing.Input,
		outputPrice:   singlePricing.Output,
		singlePricing: singlePricing,
		batchPricing:  batchPricing,
	}
}

func (t *usageTracker) add(inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.InputTokens += inputTokens
	t.usage.OutputTokens += outputTokens
	t.usage.TotalCost += float64(inputTokens) / 1_000_000 * t.inputPrice
	t.usage.TotalCost += float64(outputTokens) / 1_000_000 * t.outputPrice
}

func (t *usageTracker) snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

func (t *usageTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = Usage{}
}

func (t *usageTracker) setBatchMode(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enabled {
		t.inputPrice = t.batchPricing.Input
		t.outputPrice = t.batchPricing.Output
	} else {
		t.inputPrice = t.singlePricing.Input
		t.outputPrice = t.singlePricing.Output
	}
}
