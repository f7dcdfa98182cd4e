package evaluation

import (
	"testing"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textObj(id, title, body string) canonical.Object {
	return canonical.Object{ID: id, Title: title, Body: body}
}

func TestComputeConsolidation_DetectsNearDuplicates(t *testing.T) {
	objects := []canonical.Object{
		textObj("a", "API rate limit exceeded", "Users are hitting the API rate limit during peak hours"),
		textObj("b", "API rate limit exceeded", "Users are hitting the API rate limit during peak hours again"),
		textObj("c", "Completely unrelated onboarding doc", "How to set up your workspace for the first time"),
	}
	metrics := ComputeConsolidation(objects, nil)
	assert.Equal(t, 1, metrics.DuplicatePairs)
	assert.Equal(t, 1, metrics.DuplicateClusters)
	require.Len(t, metrics.TopDuplicates, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{metrics.TopDuplicates[0].FromID, metrics.TopDuplicates[0].ToID})
	assert.Greater(t, metrics.AvgSimilarity, duplicateJaccardThreshold-0.01)
}

func TestComputeConsolidation_CountsRedundantRelations(t *testing.T) {
	objects := []canonical.Object{textObj("a", "x", "y"), textObj("b", "z", "w")}
	rels := []relation.Relation{
		{FromID: "a", ToID: "b", Type: relation.TypeSimilarTo},
		{FromID: "a", ToID: "b", Type: relation.TypeSimilarTo},
		{FromID: "a", ToID: "b", Type: relation.TypeSimilarTo},
	}
	metrics := ComputeConsolidation(objects, rels)
	assert.Equal(t, 2, metrics.RedundantRelations)
}

func TestComputeConsolidation_EmptyObjectsReturnsZeroMetrics(t *testing.T) {
	metrics := ComputeConsolidation(nil, nil)
	assert.Equal(t, ConsolidationMetrics{}, metrics)
}

func TestComputeConsolidation_RatioCombinesPairsAndRedundancy(t *testing.T) {
	objects := []canonical.Object{
		textObj("a", "dup one", "shared text shared text shared"),
		textObj("b", "dup one", "shared text shared text shared"),
	}
	rels := []relation.Relation{
		{FromID: "a", ToID: "b", Type: relation.TypeSimilarTo},
		{FromID: "a", ToID: "b", Type: relation.TypeSimilarTo},
	}
	metrics := ComputeConsolidation(objects, rels)
	// 1 duplicate pair + 1 redundant relation, over 2 objects.
	assert.InDelta(t, 1.0, metrics.ConsolidationRatio, 1e-9)
}
