// Package store defines the persistence interface the pipeline depends on
// and ships two implementations: an in-process memstore
// (the default for tests and dry runs) and a Postgres-backed pgstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/evaluation"
)

// ErrProvider wraps any underlying storage failure: embedder/LLM/store calls that fail the stage
// and the pipeline.
var ErrProvider = errors.New("store: provider error")

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

// ObjectFilter narrows SearchCanonicalObjects; zero-value fields are
// unconstrained.
type ObjectFilter struct {
	Platform   string
	Workspace  string
	ObjectType string
	IDs        []string
}

// ExperimentUpsert is the upsertExperiment payload,
// unique on Name.
type ExperimentUpsert struct {
	Name        string
	Description string
	ConfigJSON  string
	IsBaseline  bool
	PaperIDs    []string
	GitCommit   string
	Status      string
}

// ExperimentResult is the upsertExperimentResult payload, unique on
// (ExperimentID, Scenario).
type ExperimentResult struct {
	ExperimentID     string
	Scenario         string
	F1               float64
	Precision        float64
	Recall           float64
	TP               int
	FP               int
	FN               int
	GroundTruthTotal int
	InferredTotal    int
	RetrievalTimeMs  float64
}

// LayerMetrics is the upsertLayerMetrics payload, unique on
// (ExperimentID, Layer, EvaluationMethod).
type LayerMetrics struct {
	ExperimentID     string
	Layer            string
	EvaluationMethod string
	MetricsJSON      string
	DurationMs       float64
}

// ActivityLog is the insertActivityLog payload. Logging failures are
// always swallowed by callers; Store
// implementations still return the underlying error so pkg/activity can
// decide how to log it.
type ActivityLog struct {
	OperationType string
	OperationName string
	Description   string
	Status        string
	TriggeredBy   string
	DetailsJSON   string
	GitCommit     *string
	ExperimentID  *string
}

// NearestChunk is one vector-search hit.
type NearestChunk struct {
	ChunkID           string
	CanonicalObjectID string
	Content           string
	Similarity        float64
}

// GroundTruthFilter narrows listGroundTruthRelations; an empty Scenario
// means all scenarios.
type GroundTruthFilter struct {
	Scenario string
}

// VectorSearcher is the subset of Store the Retriever Adapter (C5)
// depends on.
type VectorSearcher interface {
	NearestChunks(ctx context.Context, queryEmbedding []float32, similarityMin float64, limit int) ([]NearestChunk, error)
}

// Store is the full persistence interface consumed by the pipeline,
// matching every operation enumerated
type Store interface {
	SearchCanonicalObjects(ctx context.Context, filter ObjectFilter, limit int) ([]canonical.Object, error)

	UpsertExperiment(ctx context.Context, e ExperimentUpsert) (string, error)
	UpdateExperimentStatus(ctx context.Context, id, status string, runCompletedAt *time.Time) error
	UpsertExperimentResult(ctx context.Context, r ExperimentResult) error
	UpsertLayerMetrics(ctx context.Context, m LayerMetrics) error
	InsertActivityLog(ctx context.Context, a ActivityLog) error

	DeleteChunksByObjectIDs(ctx context.Context, ids []string) error
	InsertChunk(ctx context.Context, c chunker.Chunk) error

	VectorSearcher

	ListGroundTruthRelations(ctx context.Context, filter GroundTruthFilter) ([]evaluation.GroundTruthRelation, error)
	ListGroundTruthQueries(ctx context.Context, scenario string) ([]evaluation.GroundTruthQuery, error)
}
