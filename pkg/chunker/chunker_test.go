package chunker

import (
	"strings"
	"testing"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObject(title, body string) canonical.Object {
	now := time.Now()
	return canonical.Object{
		ID:         "slack|w1|thread|T1",
		Platform:   "slack",
		ObjectType: "thread",
		Title:      title,
		Body:       body,
		Timestamps: map[string]*time.Time{"created_at": &now},
	}
}

func TestChunk_EmptyTextProducesNoChunks(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(testObject("", ""), Config{Strategy: StrategyFixedSize, MaxChunkSize: 100, Overlap: 10})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_InvalidOverlapIsConfigError(t *testing.T) {
	c := New()
	_, err := c.Chunk(testObject("t", "b"), Config{Strategy: StrategyFixedSize, MaxChunkSize: 10, Overlap: 10})
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = c.Chunk(testObject("t", "b"), Config{Strategy: StrategyFixedSize, MaxChunkSize: 0})
	assert.ErrorIs(t, err, ErrInvalidMaxChunkSize)
}

func TestChunk_ContiguousIndices(t *testing.T) {
	c := New()
	body := strings.Repeat("word ", 200)
	chunks, err := c.Chunk(testObject("Title", body), Config{
		Strategy: StrategyFixedSize, MaxChunkSize: 50, Overlap: 10, PreserveMetadata: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.GreaterOrEqual(t, ch.ChunkIndex, 0)
		assert.NotEmpty(t, ch.Content)
		assert.Equal(t, "slack|w1|thread|T1", ch.Metadata["object_id"])
		assert.Equal(t, len(chunks), ch.Metadata["chunk_of_total"])
	}
}

func TestChunk_FixedSizeOverlap(t *testing.T) {
	c := New()
	body := strings.Repeat("a", 100)
	chunks, err := c.Chunk(testObject("", body), Config{Strategy: StrategyFixedSize, MaxChunkSize: 30, Overlap: 5})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 30)
	}
}

func TestChunk_SemanticRespectsMaxSize(t *testing.T) {
	c := New()
	body := strings.Repeat("This is one sentence. ", 50)
	chunks, err := c.Chunk(testObject("", body), Config{Strategy: StrategySemantic, MaxChunkSize: 80, Overlap: 0})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 80)
	}
}

func TestChunk_RelationalPerMessage(t *testing.T) {
	c := New()
	obj := testObject("Thread", "")
	obj.Properties = map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"author": "alice", "text": "hello"},
			map[string]interface{}{"author": "bob", "text": "hi there"},
		},
	}
	chunks, err := c.Chunk(obj, Config{Strategy: StrategyRelational, MaxChunkSize: 1000, Overlap: 0})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "alice")
	assert.Contains(t, chunks[1].Content, "bob")
	assert.Equal(t, MethodRelational, chunks[0].Method)
}

func TestStats(t *testing.T) {
	c := New()
	chunks := []Chunk{
		{Content: "ab"},
		{Content: "abcd"},
		{Content: "abcdef"},
	}
	stats := c.Stats(chunks)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 2, stats.MinChunkSize)
	assert.Equal(t, 6, stats.MaxChunkSize)
	assert.Equal(t, 12, stats.TotalChunkSize)
	assert.InDelta(t, 4.0, stats.AvgChunkSize, 1e-9)
}

func TestStats_Empty(t *testing.T) {
	c := New()
	assert.Equal(t, Stats{}, c.Stats(nil))
}
