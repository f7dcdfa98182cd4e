package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) EmbedBatch(context.Context, []string, string) (BatchResult, error) {
	return BatchResult{}, errors.New("provider down")
}

func TestAdapter_PreservesOrderAcrossBatches(t *testing.T) {
	mock := NewMockProvider(8)
	adapter := NewAdapter(mock, Config{Model: "mock", BatchSize: 2}, 8)

	texts := []string{"a", "b", "c", "d", "e"}
	res, err := adapter.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, res.Results, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, res.Results[i].Text)
		assert.Len(t, res.Results[i].Embedding, 8)
	}
}

func TestAdapter_EmbedSingle(t *testing.T) {
	mock := NewMockProvider(4)
	adapter := NewAdapter(mock, Config{Model: "mock", BatchSize: 10}, 4)
	res, err := adapter.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Greater(t, res.Tokens, 0)
}

func TestAdapter_FailsWholeInvocationOnProviderError(t *testing.T) {
	adapter := NewAdapter(failingProvider{}, Config{Model: "mock", BatchSize: 2}, 4)
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestAdapter_EstimateCost(t *testing.T) {
	adapter := NewAdapter(NewMockProvider(4), Config{Model: "mock"}, 4)
	assert.InDelta(t, 0.02, adapter.EstimateCost(1_000_000), 1e-9)

	largeAdapter := NewAdapter(NewMockProvider(4), Config{Model: "mock", PriceTier: "large"}, 4)
	assert.InDelta(t, 0.13, largeAdapter.EstimateCost(1_000_000), 1e-9)
}

func TestAdapter_Dimensions(t *testing.T) {
	adapter := NewAdapter(NewMockProvider(1536), Config{Model: "mock"}, 1536)
	assert.Equal(t, 1536, adapter.Dimensions())
}

func TestMockProvider_DeterministicAndNormalized(t *testing.T) {
	mock := NewMockProvider(16)
	r1, err := mock.EmbedBatch(context.Background(), []string{"same text"}, "mock")
	require.NoError(t, err)
	r2, err := mock.EmbedBatch(context.Background(), []string{"same text"}, "mock")
	require.NoError(t, err)
	assert.Equal(t, r1.Results[0].Embedding, r2.Results[0].Embedding)

	var sumSquares float64
	for _, v := range r1.Results[0].Embedding {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-4)
}
