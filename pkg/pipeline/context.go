// Package pipeline implements the staged orchestrator: an ordered list
// of stages advancing a shared, append-only Context through chunking,
// embedding, storage, and the optional evaluation stages.
package pipeline

import (
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/config"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
)

// Stats accumulates the per-stage reports each stage appends to as it
// runs. Fields are populated incrementally; a nil pointer means the
// owning stage has not run (or was skipped).
type Stats struct {
	Chunking   *chunker.Stats
	Embedding  *EmbeddingStats
	Validation map[string]evaluation.ValidationResult
	Retrieval  map[string]evaluation.RetrievalMetrics
	// RetrievalTimeMs is the mean per-query retrieval latency, keyed by
	// scenario, reported alongside the ranking metrics above.
	RetrievalTimeMs map[string]float64
	Graph           *evaluation.GraphMetrics
	Temporal        *evaluation.TemporalMetrics
	Consolidation   *evaluation.ConsolidationMetrics
}

// EmbeddingStats is the Embedding stage's report.
type EmbeddingStats struct {
	TotalTokens int
	CostUsd     float64
}

// Context is the shared mutable record the orchestrator passes to every
// stage by reference. Stages may read any field populated by an earlier
// stage and may only append to Stats or replace their own output field;
// the orchestrator exclusively owns construction and discards the
// Context after the run completes.
type Context struct {
	Config    config.ExperimentConfig
	StartTime time.Time

	Objects []canonical.Object
	Chunks  []chunker.Chunk
	// Embeddings is keyed by chunk id.
	Embeddings map[string][]float32

	InferredRelations []relation.Relation

	Stats Stats

	Store        store.Store
	ExperimentID *string
}

// NewContext constructs the initial Context for one run: frozen config,
// start time, the supplied object set, and empty chunk/embedding/stats
// fields.
func NewContext(cfg config.ExperimentConfig, objects []canonical.Object, st store.Store) *Context {
	return &Context{
		Config:     cfg,
		StartTime:  time.Now(),
		Objects:    objects,
		Embeddings: make(map[string][]float32),
		Store:      st,
	}
}
