// Package embedding batches text into fixed-dimension vector embeddings with
// cost accounting. The actual embedding provider (an HTTP API
// such as OpenAI's) is an external collaborator; this package only adapts
// it into the batching/ordering/cost contract the pipeline depends on.
package embedding

import (
	"context"
	"fmt"
)

// Result is one text's embedding outcome.
type Result struct {
	Text      string
	Embedding []float32
	Tokens    int
}

// BatchResult is the aggregate outcome of an EmbedBatch call.
type BatchResult struct {
	Results     []Result
	TotalTokens int
	Model       string
}

// Provider is the external embedding oracle: batched
// text-to-vector with token accounting. Implementations must preserve input
// order in their output and fail the whole call on any error — partial
// batch failures are not a supported outcome.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string, model string) (BatchResult, error)
}

// pricePerMillionTokens holds the USD cost per million tokens, per model
// tier.
var pricePerMillionTokens = map[string]float64{
	"default": 0.02,
	"large":   0.13,
}

// Config controls an Adapter.
type Config struct {
	Model      string
	BatchSize  int
	TargetDims int // 0 means "use the provider's native dimension"
	PriceTier  string
}

// Adapter batches inputs in groups of at most BatchSize, preserves input
// order, and exposes cost estimation and dimensionality.
type Adapter struct {
	provider Provider
	cfg      Config
	dims     int
}

// NewAdapter wraps a Provider. dims is the embedding dimensionality this
// adapter reports via Dimensions(); it is fixed at construction because the
// pipeline needs to know it before any embedding call completes (e.g. to
// size a mean-pooled per-object vector in the Validation stage).
func NewAdapter(provider Provider, cfg Config, dims int) *Adapter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.PriceTier == "" {
		cfg.PriceTier = "default"
	}
	return &Adapter{provider: provider, cfg: cfg, dims: dims}
}

// Dimensions returns the fixed embedding dimensionality.
func (a *Adapter) Dimensions() int {
	return a.dims
}

// EstimateCost converts a token count into a USD estimate using the
// adapter's configured price tier.
func (a *Adapter) EstimateCost(totalTokens int) float64 {
	price, ok := pricePerMillionTokens[a.cfg.PriceTier]
	if !ok {
		price = pricePerMillionTokens["default"]
	}
	return float64(totalTokens) / 1e6 * price
}

// Embed embeds a single text.
func (a *Adapter) Embed(ctx context.Context, text string) (Result, error) {
	batch, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	if len(batch.Results) != 1 {
		return Result{}, fmt.Errorf("embedding: expected 1 result, got %d", len(batch.Results))
	}
	return batch.Results[0], nil
}

// EmbedBatch splits texts into groups of at most BatchSize, calls the
// underlying provider for each group, and concatenates results in input
// order. A failure of any underlying batch call fails the whole
// invocation.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) (BatchResult, error) {
	out := BatchResult{Model: a.cfg.Model}
	for start := 0; start < len(texts); start += a.cfg.BatchSize {
		end := start + a.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		group := texts[start:end]
		res, err := a.provider.EmbedBatch(ctx, group, a.cfg.Model)
		if err != nil {
			return BatchResult{}, fmt.Errorf("embedding: provider call failed for batch [%d:%d]: %w", start, end, err)
		}
		if len(res.Results) != len(group) {
			return BatchResult{}, fmt.Errorf(
				"embedding: provider returned %d results for %d inputs", len(res.Results), len(group))
		}
		out.Results = append(out.Results, res.Results...)
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}
