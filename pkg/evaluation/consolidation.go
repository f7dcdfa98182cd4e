package evaluation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
)

const duplicateJaccardThreshold = 0.8

// DuplicatePair is one candidate-duplicate object pair above the
// consolidation threshold.
type DuplicatePair struct {
	FromID     string
	ToID       string
	Similarity float64
}

// ConsolidationMetrics is the Consolidation stage report
type ConsolidationMetrics struct {
	DuplicatePairs     int
	DuplicateClusters  int
	RedundantRelations int
	AvgSimilarity      float64
	TopDuplicates      []DuplicatePair
	ConsolidationRatio float64
}

var tokenizeNonWord = regexp.MustCompile(`[^\w]+`)

// tokenize lowercases and splits on non-word runs, matching the
// normalization style of canonical.ComputeSemanticHash but over the full
// title+body+summary text rather than just title/body/keywords.
func tokenize(s string) map[string]struct{} {
	s = strings.ToLower(s)
	fields := tokenizeNonWord.Split(s, -1)
	set := make(map[string]struct{})
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func consolidationText(o canonical.Object) string {
	var b strings.Builder
	b.WriteString(o.Title)
	b.WriteString(" ")
	b.WriteString(o.Body)
	if o.Summary != nil {
		b.WriteString(" ")
		b.WriteString(o.Summary.Short)
		b.WriteString(" ")
		b.WriteString(o.Summary.Medium)
		b.WriteString(" ")
		b.WriteString(o.Summary.Long)
		for _, k := range o.Summary.Keywords {
			b.WriteString(" ")
			b.WriteString(k)
		}
	}
	return b.String()
}

func jaccardTokens(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ComputeConsolidation 's Consolidation stage:
// candidate-duplicate detection via token Jaccard at threshold 0.8,
// union-find clustering over the resulting similarity graph, and
// redundant-relation counting (the same from/to/type triple appearing
// more than once). consolidation_ratio = opportunities / objects, where
// opportunities is the sum of duplicate pairs and redundant relations
// found.
func ComputeConsolidation(objects []canonical.Object, relations []relation.Relation) ConsolidationMetrics {
	if len(objects) == 0 {
		return ConsolidationMetrics{}
	}

	tokens := make([]map[string]struct{}, len(objects))
	for i, o := range objects {
		tokens[i] = tokenize(consolidationText(o))
	}

	uf := newUnionFind(len(objects))
	var pairs []DuplicatePair
	var sumSim float64
	for i := 0; i < len(objects); i++ {
		for j := i + 1; j < len(objects); j++ {
			sim := jaccardTokens(tokens[i], tokens[j])
			if sim < duplicateJaccardThreshold {
				continue
			}
			pairs = append(pairs, DuplicatePair{
				FromID:     objects[i].ID,
				ToID:       objects[j].ID,
				Similarity: sim,
			})
			sumSim += sim
			uf.union(i, j)
		}
	}

	clusters := make(map[int]struct{})
	for i := range objects {
		if pairInAnyCluster(uf, i) {
			clusters[uf.find(i)] = struct{}{}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Similarity > pairs[j].Similarity
	})
	top := pairs
	if len(top) > 10 {
		top = top[:10]
	}

	redundant := countRedundantRelations(relations)

	metrics := ConsolidationMetrics{
		DuplicatePairs:     len(pairs),
		DuplicateClusters:  len(clusters),
		RedundantRelations: redundant,
		TopDuplicates:      top,
	}
	if len(pairs) > 0 {
		metrics.AvgSimilarity = sumSim / float64(len(pairs))
	}
	opportunities := len(pairs) + redundant
	metrics.ConsolidationRatio = float64(opportunities) / float64(len(objects))
	return metrics
}

func pairInAnyCluster(uf *unionFind, i int) bool {
	return uf.size[uf.find(i)] > 1
}

// countRedundantRelations: the same (from,to,type)
// triple appearing more than once contributes count-1 to the total.
func countRedundantRelations(relations []relation.Relation) int {
	type key struct {
		from, to string
		t        relation.Type
	}
	counts := make(map[key]int)
	for _, r := range relations {
		counts[key{r.FromID, r.ToID, r.Type}]++
	}
	redundant := 0
	for _, c := range counts {
		if c > 1 {
			redundant += c - 1
		}
	}
	return redundant
}

// unionFind is a minimal union-find over integer indices, used for
// duplicate-cluster detection.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
