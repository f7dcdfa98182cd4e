package evaluation

import (
	"math"
	"sort"
)

// RetrievalMetrics is the per-query (or aggregated) retrieval report of
type RetrievalMetrics struct {
	NDCG    float64
	MRR     float64
	P       float64
	R       float64
	Queries int
}

// NDCG: DCG over the retrieved order divided by the
// ideal DCG (retrieved items reordered by descending relevance), 0 when
// the ideal DCG is 0 (no relevant item retrieved at any rank).
func NDCG(retrieved []string, expected map[string]float64, k int) float64 {
	if k > len(retrieved) {
		k = len(retrieved)
	}
	dcg := 0.0
	rels := make([]float64, 0, k)
	for i := 0; i < k; i++ {
		rel := expected[retrieved[i]]
		dcg += rel / math.Log2(float64(i)+2)
		rels = append(rels, rel)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rels)))
	idcg := 0.0
	for i, rel := range rels {
		idcg += rel / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRR: 1/rank (1-indexed) of the first retrieved
// item with nonzero expected relevance, 0 if none is relevant.
func MRR(retrieved []string, expected map[string]float64) float64 {
	for i, id := range retrieved {
		if expected[id] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// PrecisionAtK: |retrieved[:k] ∩ relevant| /
// k_actual, where k_actual = min(k, |retrieved|).
func PrecisionAtK(retrieved []string, expected map[string]float64, k int) float64 {
	kActual := k
	if kActual > len(retrieved) {
		kActual = len(retrieved)
	}
	if kActual == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < kActual; i++ {
		if expected[retrieved[i]] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(kActual)
}

// RecallAtK: |retrieved[:k] ∩ relevant| /
// |relevant|, 0 if there are no relevant items at all.
func RecallAtK(retrieved []string, expected map[string]float64, k int) float64 {
	relevant := 0
	for _, rel := range expected {
		if rel > 0 {
			relevant++
		}
	}
	if relevant == 0 {
		return 0
	}
	kActual := k
	if kActual > len(retrieved) {
		kActual = len(retrieved)
	}
	hits := 0
	for i := 0; i < kActual; i++ {
		if expected[retrieved[i]] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(relevant)
}

// expectedMap flattens a GroundTruthQuery's expected results into the
// id->relevance map the formulas above operate on.
func expectedMap(q GroundTruthQuery) map[string]float64 {
	m := make(map[string]float64, len(q.ExpectedResults))
	for _, e := range q.ExpectedResults {
		m[e.CanonicalObjectID] = e.RelevanceScore
	}
	return m
}

// AggregateRetrieval computes NDCG@10, MRR, P@5, R@10 per query and
// arithmetic-mean-aggregates them across queries. retrievedByQuery maps
// query id to the ordered list of retrieved canonical object ids.
func AggregateRetrieval(queries []GroundTruthQuery, retrievedByQuery map[string][]string) RetrievalMetrics {
	if len(queries) == 0 {
		return RetrievalMetrics{}
	}
	var sumNDCG, sumMRR, sumP, sumR float64
	for _, q := range queries {
		retrieved := retrievedByQuery[q.ID]
		expected := expectedMap(q)
		sumNDCG += NDCG(retrieved, expected, 10)
		sumMRR += MRR(retrieved, expected)
		sumP += PrecisionAtK(retrieved, expected, 5)
		sumR += RecallAtK(retrieved, expected, 10)
	}
	n := float64(len(queries))
	return RetrievalMetrics{
		NDCG:    sumNDCG / n,
		MRR:     sumMRR / n,
		P:       sumP / n,
		R:       sumR / n,
		Queries: len(queries),
	}
}
