package evaluation

import "github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"

// ValidationResult is the F1/precision/recall report produced by the
// Validation stage.
type ValidationResult struct {
	Precision        float64
	Recall           float64
	F1               float64
	TP               int
	FP               int
	FN               int
	GroundTruthTotal int
	InferredTotal    int
}

// Validate compares inferred relations against curated ground truth using
// the symmetric, type-agnostic matcher: relations match
// purely on their undirected (from,to) identity, ignoring type and
// direction. Ground-truth records whose source is excluded by
// relation.IsComparableGroundTruthSource are dropped before matching.
func Validate(inferred []relation.Relation, groundTruth []GroundTruthRelation) ValidationResult {
	gtSet := make(map[relation.Normalized]struct{})
	gtTotal := 0
	for _, g := range groundTruth {
		if !relation.IsComparableGroundTruthSource(g.Source) {
			continue
		}
		gtTotal++
		gtSet[relation.Normalize(g.FromID, g.ToID)] = struct{}{}
	}

	infSet := make(map[relation.Normalized]struct{})
	for _, r := range inferred {
		infSet[relation.Normalize(r.FromID, r.ToID)] = struct{}{}
	}

	var tp, fp int
	for pair := range infSet {
		if _, ok := gtSet[pair]; ok {
			tp++
		} else {
			fp++
		}
	}
	fn := 0
	for pair := range gtSet {
		if _, ok := infSet[pair]; !ok {
			fn++
		}
	}

	result := ValidationResult{
		TP: tp, FP: fp, FN: fn,
		GroundTruthTotal: gtTotal,
		InferredTotal:    len(infSet),
	}
	if tp+fp > 0 {
		result.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		result.Recall = float64(tp) / float64(tp+fn)
	}
	if result.Precision+result.Recall > 0 {
		result.F1 = 2 * result.Precision * result.Recall / (result.Precision + result.Recall)
	}
	return result
}
