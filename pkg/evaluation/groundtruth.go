// Package evaluation implements the testable evaluator formulas of
// : validation precision/recall/F1, retrieval NDCG/MRR/
// precision/recall, graph topology, temporal distribution, and
// consolidation metrics.
package evaluation

// GroundTruthRelation is a curated, read-only relation record
type GroundTruthRelation struct {
	FromID       string
	ToID         string
	RelationType string
	Source       string
	Confidence   float64
	Scenario     string
}

// ExpectedResult is one relevance-judged document within a ground-truth
// query.
type ExpectedResult struct {
	CanonicalObjectID string
	RelevanceScore    float64
}

// GroundTruthQuery is a curated retrieval query with its expected result
// set.
type GroundTruthQuery struct {
	ID              string
	QueryText       string
	Scenario        string
	ExpectedResults []ExpectedResult
}
