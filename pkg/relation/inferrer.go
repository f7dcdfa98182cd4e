package relation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"golang.org/x/sync/errgroup"
)

// LLMProvider is the external judgment oracle consumed by
// InferSimilarityWithContrastiveICL: a single-call
// RELATED/NOT_RELATED classifier.
type LLMProvider interface {
	Complete(ctx context.Context, cfg LLMConfig, prompt string) (string, error)
}

// Inferrer derives explicit, duplicate, and similarity relations over a set
// of canonical objects.
type Inferrer struct {
	cfg Config
	llm LLMProvider
}

// New constructs an Inferrer. llm may be nil unless cfg.UseContrastiveICL is
// set. Returns a ConfigError if cfg is invalid.
func New(cfg Config, llm LLMProvider) (*Inferrer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Inferrer{cfg: cfg, llm: llm}, nil
}

// pairKey orders two IDs for deterministic iteration independent of input
// order, matching the undirected matching semantics used for ground-truth
// comparison.
func pairKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ExtractExplicit derives relations from an object's own explicit fields:
// ticket/issue links, creator/assignee/decider/participant actors, linked
// PRs and issues, and parent relationships.
func (inf *Inferrer) ExtractExplicit(objects []canonical.Object) []Relation {
	var out []Relation
	for _, o := range objects {
		out = append(out, explicitForObject(o)...)
	}
	return out
}

func explicitForObject(o canonical.Object) []Relation {
	var out []Relation
	createdAt, _ := o.CreatedAt()

	emit := func(from, to string, t Type) {
		out = append(out, Relation{
			FromID: from, ToID: to, Type: t,
			Source: SourceExplicit, Confidence: 1.0, CreatedAt: createdAt,
		})
	}

	if v, ok := stringField(o.Relations["triggered_by_ticket"]); ok {
		emit(o.ID, v, TypeTriggeredBy)
	}
	if v, ok := stringField(o.Relations["resulted_in_issue"]); ok {
		emit(o.ID, v, TypeResultedIn)
	}
	if createdBy, ok := o.Actors["created_by"]; ok {
		for _, u := range createdBy.IDs() {
			emit(o.ID, u, TypeCreatedBy)
		}
	}
	if assignees, ok := o.Actors["assignees"]; ok {
		for _, u := range assignees.IDs() {
			emit(o.ID, u, TypeAssignedTo)
		}
	}
	if decidedBy, ok := o.Actors["decided_by"]; ok {
		decidedAt := preferTimestamp(o, "decided_at", "updated_at")
		for _, u := range decidedBy.IDs() {
			out = append(out, Relation{
				FromID: u, ToID: o.ID, Type: TypeDecidedBy,
				Source: SourceExplicit, Confidence: 1.0, CreatedAt: decidedAt,
			})
		}
	}
	if participants, ok := o.Actors["participants"]; ok {
		for _, u := range participants.IDs() {
			out = append(out, Relation{
				FromID: u, ToID: o.ID, Type: TypeParticipatedIn,
				Source: SourceExplicit, Confidence: 1.0, CreatedAt: createdAt,
			})
		}
	}
	for _, x := range stringSliceField(o.Relations["linked_prs"]) {
		emit(o.ID, x, TypeRelatedTo)
	}
	for _, x := range stringSliceField(o.Relations["linked_issues"]) {
		emit(o.ID, x, TypeRelatedTo)
	}
	if v, ok := stringField(o.Relations["parent_id"]); ok {
		emit(o.ID, v, TypeBelongsTo)
	}
	return out
}

// preferTimestamp returns the first named timestamp present, falling back to
// the next name in order, and finally the zero value.
func preferTimestamp(o canonical.Object, names ...string) time.Time {
	for _, n := range names {
		if ts, ok := o.Timestamp(n); ok {
			return ts
		}
	}
	return time.Time{}
}

func stringField(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func stringSliceField(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// DetectDuplicates: groups objects sharing a
// semantic_hash and emits duplicate_of edges from every non-original member
// of the group to the first (the "original").
func (inf *Inferrer) DetectDuplicates(objects []canonical.Object) []Relation {
	if !inf.cfg.EnableDuplicateDetection {
		return nil
	}
	groups := make(map[string][]canonical.Object)
	var order []string
	for _, o := range objects {
		if o.SemanticHash == nil || *o.SemanticHash == "" {
			continue
		}
		hash := *o.SemanticHash
		if _, seen := groups[hash]; !seen {
			order = append(order, hash)
		}
		groups[hash] = append(groups[hash], o)
	}

	var out []Relation
	for _, hash := range order {
		group := groups[hash]
		if len(group) < 2 {
			continue
		}
		original := group[0]
		for _, dup := range group[1:] {
			createdAt, _ := dup.CreatedAt()
			out = append(out, Relation{
				FromID: dup.ID, ToID: original.ID, Type: TypeDuplicateOf,
				Source: SourceComputed, Confidence: 1.0, CreatedAt: createdAt,
				Metadata: map[string]interface{}{
					"semantic_hash":    hash,
					"detection_method": "semantic_hash",
					"group_size":       len(group),
				},
			})
		}
	}
	return out
}

// InferSimilarity: pure keyword Jaccard
// similarity, emitted bidirectionally above keywordOverlapThreshold.
func (inf *Inferrer) InferSimilarity(objects []canonical.Object) []Relation {
	var out []Relation
	for i := 0; i < len(objects); i++ {
		for j := i + 1; j < len(objects); j++ {
			a, b := objects[i], objects[j]
			kwA, kwB := a.Keywords(), b.Keywords()
			if len(kwA) == 0 || len(kwB) == 0 {
				continue
			}
			shared, union := jaccardSets(kwA, kwB)
			if union == 0 {
				continue
			}
			j := float64(shared.size) / float64(union)
			if j < inf.cfg.KeywordOverlapThreshold {
				continue
			}
			meta := map[string]interface{}{
				"shared_keywords":       shared.sortedSlice(),
				"keyword_overlap_score": j,
			}
			out = append(out, bidirectional(a.ID, b.ID, TypeSimilarTo, SourceInferred, j, meta)...)
		}
	}
	return out
}

// InferSimilarityWithEmbeddings: combined
// keyword+cosine score when both embeddings exist and semantic mode is
// enabled, degrading to pure Jaccard (and the keyword threshold) otherwise.
func (inf *Inferrer) InferSimilarityWithEmbeddings(objects []canonical.Object, embeddings map[string][]float32) []Relation {
	var out []Relation
	for i := 0; i < len(objects); i++ {
		for j := i + 1; j < len(objects); j++ {
			a, b := objects[i], objects[j]
			kwA, kwB := a.Keywords(), b.Keywords()
			if len(kwA) == 0 || len(kwB) == 0 {
				continue
			}
			shared, union := jaccardSets(kwA, kwB)
			if union == 0 {
				continue
			}
			jaccard := float64(shared.size) / float64(union)

			vecA, okA := embeddings[a.ID]
			vecB, okB := embeddings[b.ID]
			useEmbeddings := inf.cfg.UseSemanticSimilarity && okA && okB

			var score, threshold float64
			meta := map[string]interface{}{
				"shared_keywords":       shared.sortedSlice(),
				"keyword_overlap_score": jaccard,
			}
			if useEmbeddings {
				cos := CosineSimilarity(vecA, vecB)
				score = inf.cfg.SemanticWeight*cos + (1-inf.cfg.SemanticWeight)*jaccard
				threshold = inf.cfg.SimilarityThreshold
				if cos != 0 {
					meta["semantic_score"] = cos
				}
				meta["combined_score"] = score
			} else {
				score = jaccard
				threshold = inf.cfg.KeywordOverlapThreshold
			}

			if score < threshold {
				continue
			}
			out = append(out, bidirectional(a.ID, b.ID, TypeSimilarTo, SourceInferred, score, meta)...)
		}
	}
	return out
}

// InferSimilarityWithContrastiveICL: an
// O(N^2) sequential-by-default LLM judgment pass, bounded by
// cfg.LLMConcurrency, logging progress every 10 pairs, and dropping (not
// erroring) any pair whose LLM call fails.
func (inf *Inferrer) InferSimilarityWithContrastiveICL(ctx context.Context, objects []canonical.Object) ([]Relation, error) {
	if inf.llm == nil {
		return nil, fmt.Errorf("relation: contrastive ICL enabled but no LLMProvider configured")
	}

	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < len(objects); i++ {
		for j := i + 1; j < len(objects); j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	limit := inf.cfg.LLMConcurrency
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	var out []Relation
	var processed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			a, b := objects[p.i], objects[p.j]
			prompt := buildPrompt(inf.cfg.PromptTemplate, inf.cfg.ContrastiveExamples, a.CombinedText(), b.CombinedText())

			content, err := inf.llm.Complete(gctx, inf.cfg.LLMConfig, prompt)

			mu.Lock()
			defer mu.Unlock()
			processed++
			if processed%10 == 0 {
				slog.Info("relation: contrastive ICL progress", "processed", processed, "total", len(pairs))
			}
			if err != nil {
				slog.Warn("relation: contrastive ICL call failed, skipping pair",
					"from", a.ID, "to", b.ID, "error", err)
				return nil
			}
			if !isRelated(content) {
				return nil
			}
			meta := map[string]interface{}{
				"method":        "contrastive_icl",
				"model":         inf.cfg.LLMConfig.Model,
				"prompt_length": len(prompt),
			}
			out = append(out, bidirectional(a.ID, b.ID, TypeSimilarTo, SourceInferred, 0.9, meta)...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// isRelated parses an LLM judgment response case-insensitively: a token
// RELATED that does not also contain NOT_RELATED means related.
func isRelated(content string) bool {
	upper := strings.ToUpper(content)
	if strings.Contains(upper, "NOT_RELATED") {
		return false
	}
	return strings.Contains(upper, "RELATED")
}

func buildPrompt(template string, examples ContrastiveExamples, chunk1, chunk2 string) string {
	pos := renderExamples(examples.Positive)
	neg := renderExamples(examples.Negative)
	r := strings.NewReplacer(
		"{{positiveExamples}}", pos,
		"{{negativeExamples}}", neg,
		"{{chunk1}}", chunk1,
		"{{chunk2}}", chunk2,
	)
	return r.Replace(template)
}

func renderExamples(examples []ExamplePair) string {
	if len(examples) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "%d. %q vs %q\n", i+1, ex.ChunkA, ex.ChunkB)
	}
	return b.String()
}

// InferAll: explicit ∪ duplicates ∪
// keyword-similarity.
func (inf *Inferrer) InferAll(objects []canonical.Object) []Relation {
	var out []Relation
	out = append(out, inf.ExtractExplicit(objects)...)
	out = append(out, inf.DetectDuplicates(objects)...)
	if inf.cfg.IncludeInferred {
		out = append(out, inf.InferSimilarity(objects)...)
	}
	return out
}

// InferAllWithEmbeddings: explicit ∪
// duplicates ∪ embedding-hybrid similarity.
func (inf *Inferrer) InferAllWithEmbeddings(objects []canonical.Object, embeddings map[string][]float32) []Relation {
	var out []Relation
	out = append(out, inf.ExtractExplicit(objects)...)
	out = append(out, inf.DetectDuplicates(objects)...)
	if inf.cfg.IncludeInferred {
		out = append(out, inf.InferSimilarityWithEmbeddings(objects, embeddings)...)
	}
	return out
}

// GetRelationsFor
func GetRelationsFor(relations []Relation, id string, direction Direction) []Relation {
	var out []Relation
	for _, r := range relations {
		switch direction {
		case DirectionFrom:
			if r.FromID == id {
				out = append(out, r)
			}
		case DirectionTo:
			if r.ToID == id {
				out = append(out, r)
			}
		default:
			if r.FromID == id || r.ToID == id {
				out = append(out, r)
			}
		}
	}
	return out
}

// GetRelationsByType
func GetRelationsByType(relations []Relation, t Type) []Relation {
	var out []Relation
	for _, r := range relations {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// GetStats
func GetStats(relations []Relation) Stats {
	stats := Stats{
		Total:    len(relations),
		ByType:   make(map[Type]int),
		BySource: make(map[Source]int),
	}
	var sumConfidence float64
	for _, r := range relations {
		stats.ByType[r.Type]++
		stats.BySource[r.Source]++
		sumConfidence += r.Confidence
	}
	if stats.Total > 0 {
		stats.AvgConfidence = sumConfidence / float64(stats.Total)
	}
	return stats
}

// bidirectional emits both (a->b) and (b->a) with identical confidence and
// metadata, since relations are undirected.
func bidirectional(a, b string, t Type, source Source, confidence float64, metadata map[string]interface{}) []Relation {
	return []Relation{
		{FromID: a, ToID: b, Type: t, Source: source, Confidence: confidence, Metadata: metadata},
		{FromID: b, ToID: a, Type: t, Source: source, Confidence: confidence, Metadata: metadata},
	}
}

// --- keyword set helpers -----------------------------------------------

type stringSet struct {
	members map[string]struct{}
	size    int
}

func (s stringSet) sortedSlice() []string {
	out := make([]string, 0, len(s.members))
	for k := range s.members {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// jaccardSets returns the intersection set and the union size for two
// keyword sets.
func jaccardSets(a, b map[string]struct{}) (stringSet, int) {
	inter := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			inter[k] = struct{}{}
		}
	}
	union := len(a) + len(b) - len(inter)
	return stringSet{members: inter, size: len(inter)}, union
}

// CosineSimilarity returns 0 for unequal-length vectors or when either
// magnitude is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
