package config

// DefaultExperimentConfig returns the documented built-in fallback defaults
// that a user-supplied experiment file is merged on top of, supplying a
// value for any field the user config leaves unset.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		Embedding: EmbeddingBlock{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  64,
		},
		Chunking: ChunkingBlock{
			Strategy:         "fixed-size",
			MaxChunkSize:     1000,
			Overlap:          100,
			PreserveMetadata: true,
		},
		Retrieval: RetrievalBlock{
			SimilarityThreshold: 0.7,
			ChunkLimit:          10,
			IncludeRelations:    false,
			RelationDepth:       1,
		},
		RelationInference: RelationInferenceBlock{
			SimilarityThreshold:      0.85,
			KeywordOverlapThreshold:  0.65,
			IncludeInferred:          true,
			UseSemanticSimilarity:    false,
			SemanticWeight:           0.7,
			EnableDuplicateDetection: true,
		},
		Validation: ValidationBlock{
			RunOnSave:          false,
			AutoSaveExperiment: false,
			Scenarios:          []string{"normal"},
		},
	}
}
