package relation

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(id string, opts ...func(*canonical.Object)) canonical.Object {
	now := time.Now()
	o := canonical.Object{
		ID:         id,
		Timestamps: map[string]*time.Time{"created_at": &now},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func withTitle(title string) func(*canonical.Object) {
	return func(o *canonical.Object) { o.Title = title }
}
func withKeywords(kw ...string) func(*canonical.Object) {
	return func(o *canonical.Object) {
		if o.Properties == nil {
			o.Properties = map[string]interface{}{}
		}
		list := make([]interface{}, len(kw))
		for i, k := range kw {
			list[i] = k
		}
		o.Properties["keywords"] = list
	}
}
func withSemanticHash(h string) func(*canonical.Object) {
	return func(o *canonical.Object) { o.SemanticHash = &h }
}
func withRelation(key, value string) func(*canonical.Object) {
	return func(o *canonical.Object) {
		if o.Relations == nil {
			o.Relations = map[string]interface{}{}
		}
		o.Relations[key] = value
	}
}

// Scenario 1: Explicit triggers.
func TestExtractExplicit_TriggeredByTicket(t *testing.T) {
	inf, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	thread := obj("slack|w|thread|T1", withRelation("triggered_by_ticket", "zendesk|w|ticket|Z1"))
	rels := inf.ExtractExplicit([]canonical.Object{thread})

	require.Len(t, rels, 1)
	r := rels[0]
	assert.Equal(t, "slack|w|thread|T1", r.FromID)
	assert.Equal(t, "zendesk|w|ticket|Z1", r.ToID)
	assert.Equal(t, TypeTriggeredBy, r.Type)
	assert.Equal(t, SourceExplicit, r.Source)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestExtractExplicit_DecidedByIsInverted(t *testing.T) {
	inf, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	o := obj("linear|w|issue|I1")
	o.Actors = map[string]canonical.ActorRef{
		"decided_by": {Single: strPtr("user|w|user|alice")},
	}
	rels := inf.ExtractExplicit([]canonical.Object{o})
	require.Len(t, rels, 1)
	assert.Equal(t, "user|w|user|alice", rels[0].FromID)
	assert.Equal(t, "linear|w|issue|I1", rels[0].ToID)
	assert.Equal(t, TypeDecidedBy, rels[0].Type)
}

func TestExtractExplicit_ParticipatedInIsInverted(t *testing.T) {
	inf, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	o := obj("slack|w|thread|T1")
	o.Actors = map[string]canonical.ActorRef{
		"participants": {List: []string{"user|w|user|bob", "user|w|user|carol"}},
	}
	rels := inf.ExtractExplicit([]canonical.Object{o})
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.Equal(t, TypeParticipatedIn, r.Type)
		assert.Equal(t, "slack|w|thread|T1", r.ToID)
	}
}

// Scenario 2: Bidirectional keyword similarity.
func TestInferSimilarity_Bidirectional(t *testing.T) {
	inf, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	// Disjoint titles made of tokens no longer than 3 characters, so they
	// add nothing to either keyword set.
	a := obj("a|w|x|1", withTitle("Foo"), withKeywords("api", "rate", "limit"))
	b := obj("b|w|x|2", withTitle("Bar"), withKeywords("api", "rate", "limit"))

	rels := inf.InferSimilarity([]canonical.Object{a, b})
	require.Len(t, rels, 2)

	byFrom := map[string]Relation{}
	for _, r := range rels {
		byFrom[r.FromID] = r
	}
	ab, ba := byFrom[a.ID], byFrom[b.ID]
	assert.Equal(t, TypeSimilarTo, ab.Type)
	assert.Equal(t, 1.0, ab.Confidence)
	assert.Equal(t, ab.Confidence, ba.Confidence)
	assert.ElementsMatch(t, []string{"api", "rate", "limit"}, ab.Metadata["shared_keywords"])
	assert.ElementsMatch(t, ab.Metadata["shared_keywords"], ba.Metadata["shared_keywords"])
}

// Scenario 3: Duplicate detection.
func TestDetectDuplicates_ThreeWayGroup(t *testing.T) {
	inf, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	hash := "deadbeef"
	o1 := obj("a|w|x|1", withSemanticHash(hash))
	o2 := obj("a|w|x|2", withSemanticHash(hash))
	o3 := obj("a|w|x|3", withSemanticHash(hash))

	rels := inf.DetectDuplicates([]canonical.Object{o1, o2, o3})
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.Equal(t, TypeDuplicateOf, r.Type)
		assert.Equal(t, SourceComputed, r.Source)
		assert.Equal(t, 1.0, r.Confidence)
		assert.Equal(t, o1.ID, r.ToID)
		assert.Equal(t, 3, r.Metadata["group_size"])
	}
}

// Scenario 5: Hybrid similarity tie-break.
func TestInferSimilarityWithEmbeddings_TieBreakBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseSemanticSimilarity = true
	cfg.SemanticWeight = 0.7
	cfg.SimilarityThreshold = 0.85
	inf, err := New(cfg, nil)
	require.NoError(t, err)

	a := obj("a|w|x|1", withKeywords("one"))
	b := obj("a|w|x|2", withKeywords("two"))
	// Jaccard for disjoint single-keyword sets is 0, so we hand-construct a
	// known jaccard=0.2 situation isn't directly expressible via the keyword
	// helper; instead verify the documented arithmetic combination directly.
	combined := cfg.SemanticWeight*0.95 + (1-cfg.SemanticWeight)*0.2
	assert.InDelta(t, 0.725, combined, 1e-9)
	assert.Less(t, combined, cfg.SimilarityThreshold)

	embeddings := map[string][]float32{
		a.ID: {1, 0, 0},
		b.ID: {1, 0, 0},
	}
	rels := inf.InferSimilarityWithEmbeddings([]canonical.Object{a, b}, embeddings)
	assert.Empty(t, rels)
}

func TestInferSimilarityWithEmbeddings_DegradesToJaccardWithoutEmbeddings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseSemanticSimilarity = true
	inf, err := New(cfg, nil)
	require.NoError(t, err)

	a := obj("a|w|x|1", withKeywords("api", "rate", "limit"))
	b := obj("a|w|x|2", withKeywords("api", "rate", "limit"))
	rels := inf.InferSimilarityWithEmbeddings([]canonical.Object{a, b}, nil)
	require.Len(t, rels, 2)
	assert.Equal(t, 1.0, rels[0].Confidence)
}

func TestCosineSimilarity_Boundaries(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
}

func TestConfig_ValidateRejectsOutOfRangeThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 1.5
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	cfg = DefaultConfig()
	cfg.SemanticWeight = -0.1
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

// --- Contrastive ICL -----------------------------------------------------

type stubLLM struct {
	response string
	err      error
}

func (s stubLLM) Complete(context.Context, LLMConfig, string) (string, error) {
	return s.response, s.err
}

func TestInferSimilarityWithContrastiveICL_EmitsBidirectional(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseContrastiveICL = true
	inf, err := New(cfg, stubLLM{response: "RELATED"})
	require.NoError(t, err)

	a := obj("a|w|x|1", withTitle("Alpha"))
	b := obj("a|w|x|2", withTitle("Beta"))
	rels, err := inf.InferSimilarityWithContrastiveICL(context.Background(), []canonical.Object{a, b})
	require.NoError(t, err)
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.Equal(t, 0.9, r.Confidence)
		assert.Equal(t, "contrastive_icl", r.Metadata["method"])
	}
}

func TestInferSimilarityWithContrastiveICL_NotRelatedTokenWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseContrastiveICL = true
	inf, err := New(cfg, stubLLM{response: "related but actually NOT_RELATED"})
	require.NoError(t, err)

	a := obj("a|w|x|1")
	b := obj("a|w|x|2")
	rels, err := inf.InferSimilarityWithContrastiveICL(context.Background(), []canonical.Object{a, b})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestInferSimilarityWithContrastiveICL_ErrorSkipsPairWithoutFailing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseContrastiveICL = true
	inf, err := New(cfg, stubLLM{err: assertErr{}})
	require.NoError(t, err)

	a := obj("a|w|x|1")
	b := obj("a|w|x|2")
	rels, err := inf.InferSimilarityWithContrastiveICL(context.Background(), []canonical.Object{a, b})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }

func TestGetRelationsForAndByType(t *testing.T) {
	rels := []Relation{
		{FromID: "a", ToID: "b", Type: TypeSimilarTo},
		{FromID: "b", ToID: "a", Type: TypeSimilarTo},
		{FromID: "a", ToID: "c", Type: TypeCreatedBy},
	}
	assert.Len(t, GetRelationsFor(rels, "a", DirectionFrom), 2)
	assert.Len(t, GetRelationsFor(rels, "a", DirectionTo), 1)
	assert.Len(t, GetRelationsFor(rels, "a", DirectionBoth), 3)
	assert.Len(t, GetRelationsByType(rels, TypeSimilarTo), 2)
}

func TestGetStats(t *testing.T) {
	rels := []Relation{
		{Type: TypeSimilarTo, Source: SourceInferred, Confidence: 1.0},
		{Type: TypeSimilarTo, Source: SourceInferred, Confidence: 0.5},
		{Type: TypeCreatedBy, Source: SourceExplicit, Confidence: 1.0},
	}
	stats := GetStats(rels)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[TypeSimilarTo])
	assert.Equal(t, 2, stats.BySource[SourceInferred])
	assert.InDelta(t, 2.5/3, stats.AvgConfidence, 1e-9)
}

func strPtr(s string) *string { return &s }
