package config

import (
	"fmt"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/chunker"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
)

// Validate performs fail-fast, ordered validation across every section of
// an ExperimentConfig, matching the order documents:
// chunking → embedding → relationInference → retrieval → validation →
// metadata.
func Validate(cfg *ExperimentConfig) error {
	if err := validateChunking(cfg.Chunking); err != nil {
		return fmt.Errorf("chunking validation failed: %w", err)
	}
	if err := validateEmbedding(cfg.Embedding); err != nil {
		return fmt.Errorf("embedding validation failed: %w", err)
	}
	if err := validateRelationInference(cfg.RelationInference); err != nil {
		return fmt.Errorf("relationInference validation failed: %w", err)
	}
	if err := validateRetrieval(cfg.Retrieval); err != nil {
		return fmt.Errorf("retrieval validation failed: %w", err)
	}
	if err := validateValidation(cfg.Validation); err != nil {
		return fmt.Errorf("validation-block validation failed: %w", err)
	}
	if err := validateMetadata(cfg.Metadata); err != nil {
		return fmt.Errorf("metadata validation failed: %w", err)
	}
	return nil
}

func validateChunking(c ChunkingBlock) error {
	cc := chunker.Config{
		Strategy:     chunker.Strategy(c.Strategy),
		MaxChunkSize: c.MaxChunkSize,
		Overlap:      c.Overlap,
	}
	if err := cc.Validate(); err != nil {
		return NewValidationError("chunking", "", err)
	}
	switch chunker.Strategy(c.Strategy) {
	case chunker.StrategyFixedSize, chunker.StrategySemantic, chunker.StrategyRelational:
	default:
		return NewValidationError("chunking", "strategy", fmt.Errorf("%w: %q", ErrInvalidFieldValue, c.Strategy))
	}
	return nil
}

func validateEmbedding(e EmbeddingBlock) error {
	if e.Model == "" {
		return NewValidationError("embedding", "model", ErrMissingRequired)
	}
	if e.BatchSize < 0 {
		return NewValidationError("embedding", "batchSize", fmt.Errorf("%w: must be non-negative", ErrInvalidFieldValue))
	}
	if e.Dimensions < 0 {
		return NewValidationError("embedding", "dimensions", fmt.Errorf("%w: must be non-negative", ErrInvalidFieldValue))
	}
	return nil
}

func validateRelationInference(r RelationInferenceBlock) error {
	cfg := relation.Config{
		SimilarityThreshold:     r.SimilarityThreshold,
		KeywordOverlapThreshold: r.KeywordOverlapThreshold,
		SemanticWeight:          r.SemanticWeight,
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError("relationInference", "", err)
	}
	if r.UseContrastiveICL && r.LLMConfig == nil {
		return NewValidationError("relationInference", "llmConfig", fmt.Errorf("%w: required when useContrastiveICL is set", ErrMissingRequired))
	}
	return nil
}

func validateRetrieval(r RetrievalBlock) error {
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold > 1 {
		return NewValidationError("retrieval", "similarityThreshold", fmt.Errorf("%w: must be in [0,1]", ErrInvalidFieldValue))
	}
	if r.ChunkLimit <= 0 {
		return NewValidationError("retrieval", "chunkLimit", fmt.Errorf("%w: must be positive", ErrInvalidFieldValue))
	}
	if r.RelationDepth < 0 {
		return NewValidationError("retrieval", "relationDepth", fmt.Errorf("%w: must be non-negative", ErrInvalidFieldValue))
	}
	return nil
}

func validateValidation(v ValidationBlock) error {
	if v.AutoSaveExperiment && len(v.Scenarios) == 0 {
		return NewValidationError("validation", "scenarios", fmt.Errorf("%w: at least one scenario required when autoSaveExperiment is set", ErrMissingRequired))
	}
	return nil
}

func validateMetadata(MetadataBlock) error {
	return nil
}
