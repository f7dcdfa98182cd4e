package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/embedding"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vector []float32
}

func (s stubProvider) EmbedBatch(_ context.Context, texts []string, model string) (embedding.BatchResult, error) {
	results := make([]embedding.Result, len(texts))
	for i, t := range texts {
		results[i] = embedding.Result{Text: t, Embedding: s.vector, Tokens: len(t)}
	}
	return embedding.BatchResult{Results: results, Model: model}, nil
}

type fakeSearcher struct {
	hits []store.NearestChunk
}

func (f fakeSearcher) NearestChunks(_ context.Context, _ []float32, _ float64, limit int) ([]store.NearestChunk, error) {
	if limit > 0 && limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func newTestRetriever(hits []store.NearestChunk) *Retriever {
	r := New(fakeSearcher{hits: hits}, embedding.NewAdapter(stubProvider{vector: []float32{1, 0}}, embedding.Config{Model: "test"}, 2))
	r.now = func() time.Time { return time.Unix(0, 0) }
	return r
}

func TestRetrieve_OrdersBySimilarityDescending(t *testing.T) {
	r := newTestRetriever([]store.NearestChunk{
		{ChunkID: "c1", CanonicalObjectID: "o1", Content: "a", Similarity: 0.6},
		{ChunkID: "c2", CanonicalObjectID: "o2", Content: "b", Similarity: 0.9},
		{ChunkID: "c3", CanonicalObjectID: "o3", Content: "c", Similarity: 0.75},
	})

	res, err := r.Retrieve(context.Background(), "query text", Options{SimilarityThreshold: 0.5, ChunkLimit: 10}, nil)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "o2", res.Chunks[0].CanonicalObjectID)
	assert.Equal(t, "o3", res.Chunks[1].CanonicalObjectID)
	assert.Equal(t, "o1", res.Chunks[2].CanonicalObjectID)
}

func TestRetrieve_StableTiebreakPreservesInsertionOrder(t *testing.T) {
	r := newTestRetriever([]store.NearestChunk{
		{ChunkID: "c1", CanonicalObjectID: "first", Similarity: 0.8},
		{ChunkID: "c2", CanonicalObjectID: "second", Similarity: 0.8},
	})

	res, err := r.Retrieve(context.Background(), "q", Options{SimilarityThreshold: 0.5}, nil)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "first", res.Chunks[0].CanonicalObjectID)
	assert.Equal(t, "second", res.Chunks[1].CanonicalObjectID)
}

func TestRetrieve_IncludeRelationsWidensViaGraphWalk(t *testing.T) {
	r := newTestRetriever([]store.NearestChunk{
		{ChunkID: "c1", CanonicalObjectID: "seed", Similarity: 0.9},
	})
	relations := []relation.Relation{
		{FromID: "seed", ToID: "neighbor", Type: relation.TypeDuplicateOf},
		{FromID: "neighbor", ToID: "far", Type: relation.TypeRelatedTo},
	}

	res, err := r.Retrieve(context.Background(), "q", Options{
		SimilarityThreshold: 0.5,
		IncludeRelations:    true,
		RelationDepth:       1,
	}, relations)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, c := range res.Chunks {
		ids[c.CanonicalObjectID] = true
	}
	assert.True(t, ids["seed"])
	assert.True(t, ids["neighbor"])
	assert.False(t, ids["far"], "far is 2 hops away, beyond RelationDepth 1")
}

func TestRetrieve_NoRelationsWalkWhenDisabled(t *testing.T) {
	r := newTestRetriever([]store.NearestChunk{
		{ChunkID: "c1", CanonicalObjectID: "seed", Similarity: 0.9},
	})
	relations := []relation.Relation{
		{FromID: "seed", ToID: "neighbor", Type: relation.TypeDuplicateOf},
	}

	res, err := r.Retrieve(context.Background(), "q", Options{SimilarityThreshold: 0.5}, relations)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "seed", res.Chunks[0].CanonicalObjectID)
}

func TestRetrieve_DefaultsChunkLimitWhenUnset(t *testing.T) {
	hits := make([]store.NearestChunk, 15)
	for i := range hits {
		hits[i] = store.NearestChunk{ChunkID: "c", CanonicalObjectID: "o", Similarity: 0.5}
	}
	r := newTestRetriever(hits)

	res, err := r.Retrieve(context.Background(), "q", Options{SimilarityThreshold: 0.1}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 10)
}

type erroringSearcher struct{}

func (erroringSearcher) NearestChunks(context.Context, []float32, float64, int) ([]store.NearestChunk, error) {
	return nil, assertSentinel{}
}

type assertSentinel struct{}

func (assertSentinel) Error() string { return "vector search unavailable" }

func TestRetrieve_PropagatesVectorSearchError(t *testing.T) {
	r := New(erroringSearcher{}, embedding.NewAdapter(stubProvider{vector: []float32{1, 0}}, embedding.Config{Model: "test"}, 2))
	_, err := r.Retrieve(context.Background(), "q", Options{SimilarityThreshold: 0.5}, nil)
	require.Error(t, err)
}
