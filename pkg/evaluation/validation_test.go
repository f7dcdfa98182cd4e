package evaluation

import (
	"testing"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/stretchr/testify/assert"
)

// scenario 4: Validation F1.
func TestValidate_Scenario4(t *testing.T) {
	inferred := []relation.Relation{
		{FromID: "A", ToID: "B", Type: relation.TypeSimilarTo},
		{FromID: "C", ToID: "D", Type: relation.TypeSimilarTo},
	}
	groundTruth := []GroundTruthRelation{
		{FromID: "B", ToID: "A", RelationType: "related_to"},
		{FromID: "E", ToID: "F", RelationType: "related_to"},
	}
	result := Validate(inferred, groundTruth)
	assert.Equal(t, 1, result.TP)
	assert.Equal(t, 1, result.FP)
	assert.Equal(t, 1, result.FN)
	assert.InDelta(t, 0.5, result.Precision, 1e-9)
	assert.InDelta(t, 0.5, result.Recall, 1e-9)
	assert.InDelta(t, 0.5, result.F1, 1e-9)
}

func TestValidate_ExcludesUnreliableGroundTruthSources(t *testing.T) {
	inferred := []relation.Relation{{FromID: "A", ToID: "B"}}
	groundTruth := []GroundTruthRelation{
		{FromID: "A", ToID: "B", Source: "human_verified_unrelated"},
	}
	result := Validate(inferred, groundTruth)
	assert.Equal(t, 0, result.GroundTruthTotal)
	assert.Equal(t, 0, result.TP)
	assert.Equal(t, 1, result.FP)
}

func TestValidate_EmptyInputsProduceZeroMetrics(t *testing.T) {
	result := Validate(nil, nil)
	assert.Equal(t, 0.0, result.Precision)
	assert.Equal(t, 0.0, result.Recall)
	assert.Equal(t, 0.0, result.F1)
}
