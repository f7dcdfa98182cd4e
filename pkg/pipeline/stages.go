package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/activity"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/config"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/embedding"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/retrieval"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// Deps bundles the external collaborators the default stage list needs,
// beyond what Context already carries.
type Deps struct {
	Embedder  *embedding.Adapter
	Retriever *retrieval.Retriever
	LLM       relation.LLMProvider

	// DryRun omits the Storage stage from the built list entirely.
	DryRun bool
	// SkipValidation omits every bracketed evaluation stage
	// (Retrieval/Validation/Graph/Temporal/Consolidation) from the
	// built list entirely, rather than adding them with ShouldRun
	// always false — this keeps a dry chunk/embed/store-only run from
	// paying even the stage dispatch overhead.
	SkipValidation bool
}

// DefaultStages builds the ordered stage list:
// Chunking → Embedding → Storage → [Retrieval] → [Validation] → [Graph]
// → [Temporal] → [Consolidation].
func DefaultStages(st store.Store, deps Deps) []Stage {
	stages := []Stage{
		chunkingStage{},
		embeddingStage{embedder: deps.Embedder},
	}
	if !deps.DryRun {
		stages = append(stages, storageStage{logger: activity.New(st)})
	}
	if !deps.SkipValidation {
		stages = append(stages,
			retrievalStage{retriever: deps.Retriever},
			validationStage{llm: deps.LLM},
			graphStage{},
			temporalStage{},
			consolidationStage{},
		)
	}
	return stages
}

// runOnSave is the shared ShouldRun for every bracketed evaluation
// stage: they only execute when the experiment config explicitly asks
// for on-save evaluation.
func runOnSave(pc *Context) bool { return pc.Config.Validation.RunOnSave }

// ─── Chunking ────────────────────────────────────────────────────────

type chunkingStage struct{}

func (chunkingStage) Name() string               { return "Chunking" }
func (chunkingStage) Description() string        { return "splits canonical objects into ordered text chunks" }
func (chunkingStage) ShouldRun(pc *Context) bool { return len(pc.Objects) > 0 }

func (chunkingStage) Execute(_ context.Context, pc *Context) error {
	c := chunker.New()
	cfg := chunker.Config{
		Strategy:         chunker.Strategy(pc.Config.Chunking.Strategy),
		MaxChunkSize:     pc.Config.Chunking.MaxChunkSize,
		Overlap:          pc.Config.Chunking.Overlap,
		PreserveMetadata: pc.Config.Chunking.PreserveMetadata,
	}

	var all []chunker.Chunk
	for _, obj := range pc.Objects {
		chunks, err := c.Chunk(obj, cfg)
		if err != nil {
			return fmt.Errorf("chunking object %q: %w", obj.ID, err)
		}
		all = append(all, chunks...)
	}

	pc.Chunks = all
	stats := c.Stats(all)
	pc.Stats.Chunking = &stats
	return nil
}

// ─── Embedding ───────────────────────────────────────────────────────

type embeddingStage struct {
	embedder *embedding.Adapter
}

func (embeddingStage) Name() string { return "Embedding" }
func (embeddingStage) Description() string {
	return "embeds every chunk into the configured vector space"
}
func (embeddingStage) ShouldRun(pc *Context) bool { return len(pc.Chunks) > 0 }

func (s embeddingStage) Execute(ctx context.Context, pc *Context) error {
	texts := make([]string, len(pc.Chunks))
	for i, c := range pc.Chunks {
		texts[i] = c.Content
	}

	batch, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(batch.Results) != len(pc.Chunks) {
		return fmt.Errorf("embedding: expected %d results, got %d", len(pc.Chunks), len(batch.Results))
	}

	for i, c := range pc.Chunks {
		pc.Embeddings[c.ID] = batch.Results[i].Embedding
	}
	pc.Stats.Embedding = &EmbeddingStats{
		TotalTokens: batch.TotalTokens,
		CostUsd:     s.embedder.EstimateCost(batch.TotalTokens),
	}
	return nil
}

// ─── Storage ─────────────────────────────────────────────────────────

type storageStage struct {
	logger *activity.Logger
}

func (storageStage) Name() string { return "Storage" }
func (storageStage) Description() string {
	return "replaces stored chunks and embeddings for this run's objects"
}
func (storageStage) ShouldRun(pc *Context) bool {
	return len(pc.Chunks) > 0 && len(pc.Embeddings) > 0
}

func (s storageStage) Execute(ctx context.Context, pc *Context) error {
	objectIDs := make(map[string]struct{})
	for _, c := range pc.Chunks {
		objectIDs[c.CanonicalObjectID] = struct{}{}
	}
	ids := make([]string, 0, len(objectIDs))
	for id := range objectIDs {
		ids = append(ids, id)
	}

	if err := pc.Store.DeleteChunksByObjectIDs(ctx, ids); err != nil {
		return fmt.Errorf("deleting existing chunks: %w", err)
	}

	for _, c := range pc.Chunks {
		c.Embedding = pc.Embeddings[c.ID]
		if err := pc.Store.InsertChunk(ctx, c); err != nil {
			return fmt.Errorf("inserting chunk %q: %w", c.ID, err)
		}
	}

	s.logger.Record(ctx, "pipeline", "storage", "completed", "orchestrator",
		map[string]interface{}{"object_count": len(ids), "chunk_count": len(pc.Chunks)}, nil, pc.ExperimentID)
	return nil
}

// ─── Retrieval ───────────────────────────────────────────────────────

type retrievalStage struct {
	retriever *retrieval.Retriever
}

func (retrievalStage) Name() string { return "Retrieval" }
func (retrievalStage) Description() string {
	return "runs ground-truth queries through the retriever and aggregates ranking metrics"
}
func (s retrievalStage) ShouldRun(pc *Context) bool { return runOnSave(pc) && s.retriever != nil }

func (s retrievalStage) Execute(ctx context.Context, pc *Context) error {
	if pc.Stats.Retrieval == nil {
		pc.Stats.Retrieval = make(map[string]evaluation.RetrievalMetrics)
	}
	if pc.Stats.RetrievalTimeMs == nil {
		pc.Stats.RetrievalTimeMs = make(map[string]float64)
	}

	scenarios := pc.Config.Validation.Scenarios
	if len(scenarios) == 0 {
		scenarios = []string{"normal"}
	}

	opts := retrieval.Options{
		SimilarityThreshold: pc.Config.Retrieval.SimilarityThreshold,
		ChunkLimit:          pc.Config.Retrieval.ChunkLimit,
		IncludeRelations:    pc.Config.Retrieval.IncludeRelations,
		RelationDepth:       pc.Config.Retrieval.RelationDepth,
	}

	for _, scenario := range scenarios {
		queries, err := pc.Store.ListGroundTruthQueries(ctx, scenario)
		if err != nil {
			return fmt.Errorf("listing ground-truth queries for scenario %q: %w", scenario, err)
		}
		if len(queries) == 0 {
			continue
		}

		retrievedByQuery := make(map[string][]string, len(queries))
		var totalMs float64
		for _, q := range queries {
			res, err := s.retriever.Retrieve(ctx, q.QueryText, opts, pc.InferredRelations)
			if err != nil {
				return fmt.Errorf("retrieving for query %q: %w", q.ID, err)
			}
			retrievedByQuery[q.ID] = dedupeByCanonicalObjectID(res.Chunks)
			totalMs += res.Stats.RetrievalTimeMs
		}

		pc.Stats.Retrieval[scenario] = evaluation.AggregateRetrieval(queries, retrievedByQuery)
		pc.Stats.RetrievalTimeMs[scenario] = totalMs / float64(len(queries))
	}
	return nil
}

// dedupeByCanonicalObjectID collapses chunks down to one entry per
// canonical object, in first-occurrence order, before ranking metrics are
// computed — a vector search can legitimately return more than one chunk
// of the same object, and NDCG/MRR/P/R are defined over distinct objects.
func dedupeByCanonicalObjectID(chunks []retrieval.ResultChunk) []string {
	seen := make(map[string]bool, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.CanonicalObjectID] {
			continue
		}
		seen[c.CanonicalObjectID] = true
		ids = append(ids, c.CanonicalObjectID)
	}
	return ids
}

// ─── Validation ──────────────────────────────────────────────────────

type validationStage struct {
	llm relation.LLMProvider
}

func (validationStage) Name() string { return "Validation" }
func (validationStage) Description() string {
	return "infers relations and scores them against curated ground truth"
}
func (validationStage) ShouldRun(pc *Context) bool { return runOnSave(pc) }

func (s validationStage) Execute(ctx context.Context, pc *Context) error {
	cfg := toRelationConfig(pc.Config)
	inf, err := relation.New(cfg, s.llm)
	if err != nil {
		return fmt.Errorf("constructing relation inferrer: %w", err)
	}

	perObjectEmbedding := meanEmbeddingsByObject(pc.Chunks, pc.Embeddings)

	var inferred []relation.Relation
	switch {
	case cfg.UseContrastiveICL:
		icl, err := inf.InferSimilarityWithContrastiveICL(ctx, pc.Objects)
		if err != nil {
			return fmt.Errorf("contrastive-ICL inference: %w", err)
		}
		inferred = append(inf.ExtractExplicit(pc.Objects), icl...)
		if cfg.EnableDuplicateDetection {
			inferred = append(inferred, inf.DetectDuplicates(pc.Objects)...)
		}
	case cfg.UseSemanticSimilarity:
		inferred = inf.InferAllWithEmbeddings(pc.Objects, perObjectEmbedding)
	default:
		inferred = inf.InferAll(pc.Objects)
	}
	pc.InferredRelations = inferred

	if pc.Stats.Validation == nil {
		pc.Stats.Validation = make(map[string]evaluation.ValidationResult)
	}
	scenarios := pc.Config.Validation.Scenarios
	if len(scenarios) == 0 {
		scenarios = []string{"normal"}
	}
	for _, scenario := range scenarios {
		groundTruth, err := pc.Store.ListGroundTruthRelations(ctx, store.GroundTruthFilter{Scenario: scenario})
		if err != nil {
			return fmt.Errorf("listing ground truth for scenario %q: %w", scenario, err)
		}
		pc.Stats.Validation[scenario] = evaluation.Validate(inferred, groundTruth)
	}
	return nil
}

// toRelationConfig adapts the declarative RelationInferenceBlock into the
// relation.Inferrer's runtime Config.
func toRelationConfig(cfg config.ExperimentConfig) relation.Config {
	ri := cfg.RelationInference

	out := relation.Config{
		SimilarityThreshold:      ri.SimilarityThreshold,
		KeywordOverlapThreshold:  ri.KeywordOverlapThreshold,
		IncludeInferred:          ri.IncludeInferred,
		UseSemanticSimilarity:    ri.UseSemanticSimilarity,
		SemanticWeight:           ri.SemanticWeight,
		EnableDuplicateDetection: ri.EnableDuplicateDetection,
		UseContrastiveICL:        ri.UseContrastiveICL,
		PromptTemplate:           ri.PromptTemplate,
	}
	if out.PromptTemplate == "" {
		out.PromptTemplate = relation.DefaultPromptTemplate
	}
	if ri.ContrastiveExamples != nil {
		out.ContrastiveExamples = relation.ContrastiveExamples{
			Positive: toExamplePairs(ri.ContrastiveExamples.Positive),
			Negative: toExamplePairs(ri.ContrastiveExamples.Negative),
		}
	}
	if ri.LLMConfig != nil {
		out.LLMConfig = relation.LLMConfig{
			Model:       ri.LLMConfig.Model,
			Temperature: ri.LLMConfig.Temperature,
			MaxTokens:   ri.LLMConfig.MaxTokens,
		}
	}
	return out
}

func toExamplePairs(in []config.ExamplePairBlock) []relation.ExamplePair {
	out := make([]relation.ExamplePair, len(in))
	for i, p := range in {
		out[i] = relation.ExamplePair{ChunkA: p.ChunkA, ChunkB: p.ChunkB}
	}
	return out
}

// meanEmbeddingsByObject computes the component-wise mean of every
// chunk embedding belonging to each canonical object id, for use as that
// object's embedding in similarity scoring.
func meanEmbeddingsByObject(chunks []chunker.Chunk, embeddings map[string][]float32) map[string][]float32 {
	sums := make(map[string][]float32)
	counts := make(map[string]int)
	for _, c := range chunks {
		vec, ok := embeddings[c.ID]
		if !ok || len(vec) == 0 {
			continue
		}
		sum, exists := sums[c.CanonicalObjectID]
		if !exists {
			sum = make([]float32, len(vec))
		}
		for i, v := range vec {
			if i < len(sum) {
				sum[i] += v
			}
		}
		sums[c.CanonicalObjectID] = sum
		counts[c.CanonicalObjectID]++
	}

	out := make(map[string][]float32, len(sums))
	for id, sum := range sums {
		n := float32(counts[id])
		mean := make([]float32, len(sum))
		for i, v := range sum {
			mean[i] = v / n
		}
		out[id] = mean
	}
	return out
}

// ─── Graph ───────────────────────────────────────────────────────────

type graphStage struct{}

func (graphStage) Name() string               { return "Graph" }
func (graphStage) Description() string        { return "computes relation-graph topology metrics" }
func (graphStage) ShouldRun(pc *Context) bool { return runOnSave(pc) }
func (graphStage) Execute(_ context.Context, pc *Context) error {
	metrics := evaluation.BuildGraph(pc.InferredRelations)
	pc.Stats.Graph = &metrics
	return nil
}

// ─── Temporal ────────────────────────────────────────────────────────

type temporalStage struct{}

func (temporalStage) Name() string               { return "Temporal" }
func (temporalStage) Description() string        { return "computes the object set's temporal distribution" }
func (temporalStage) ShouldRun(pc *Context) bool { return runOnSave(pc) }
func (temporalStage) Execute(_ context.Context, pc *Context) error {
	metrics := evaluation.ComputeTemporal(pc.Objects, time.Now())
	pc.Stats.Temporal = &metrics
	return nil
}

// ─── Consolidation ───────────────────────────────────────────────────

type consolidationStage struct{}

func (consolidationStage) Name() string { return "Consolidation" }
func (consolidationStage) Description() string {
	return "detects near-duplicate objects and redundant relations"
}
func (consolidationStage) ShouldRun(pc *Context) bool { return runOnSave(pc) }
func (consolidationStage) Execute(_ context.Context, pc *Context) error {
	metrics := evaluation.ComputeConsolidation(pc.Objects, pc.InferredRelations)
	pc.Stats.Consolidation = &metrics
	return nil
}
