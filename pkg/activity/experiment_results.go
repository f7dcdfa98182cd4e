package activity

import (
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// BuildExperimentResults turns the Validation stage's per-scenario
// results into the upsertExperimentResult rows
// describes but doesn't name: one row per scenario, keyed by
// (experimentID, scenario). retrievalTimeMs is optional per-scenario
// retrieval timing collected by the Retrieval stage; scenarios absent
// from it get a zero retrieval time.
func BuildExperimentResults(experimentID string, byScenario map[string]evaluation.ValidationResult, retrievalTimeMs map[string]float64) []store.ExperimentResult {
	out := make([]store.ExperimentResult, 0, len(byScenario))
	for scenario, v := range byScenario {
		out = append(out, store.ExperimentResult{
			ExperimentID:     experimentID,
			Scenario:         scenario,
			F1:               v.F1,
			Precision:        v.Precision,
			Recall:           v.Recall,
			TP:               v.TP,
			FP:               v.FP,
			FN:               v.FN,
			GroundTruthTotal: v.GroundTruthTotal,
			InferredTotal:    v.InferredTotal,
			RetrievalTimeMs:  retrievalTimeMs[scenario],
		})
	}
	return out
}
