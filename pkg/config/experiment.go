// Package config loads and validates the declarative experiment
// configuration that drives one pipeline run.
package config

// ExperimentConfig is the full declarative record for one pipeline run,
// 's YAML shape section-for-section.
type ExperimentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Embedding         EmbeddingBlock         `yaml:"embedding"`
	Chunking          ChunkingBlock          `yaml:"chunking"`
	Retrieval         RetrievalBlock         `yaml:"retrieval"`
	RelationInference RelationInferenceBlock `yaml:"relationInference"`
	Validation        ValidationBlock        `yaml:"validation"`
	Metadata          MetadataBlock          `yaml:"metadata"`
}

// EmbeddingBlock configures the Embedder Adapter (C3).
type EmbeddingBlock struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batchSize"`
}

// ChunkingBlock configures the Chunker (C2).
type ChunkingBlock struct {
	Strategy         string `yaml:"strategy"`
	MaxChunkSize     int    `yaml:"maxChunkSize"`
	Overlap          int    `yaml:"overlap"`
	PreserveMetadata bool   `yaml:"preserveMetadata"`
}

// RetrievalBlock configures the Retriever Adapter (C5).
type RetrievalBlock struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	ChunkLimit          int     `yaml:"chunkLimit"`
	IncludeRelations    bool    `yaml:"includeRelations"`
	RelationDepth       int     `yaml:"relationDepth"`
}

// RelationInferenceBlock configures the Relation Inferrer (C4).
type RelationInferenceBlock struct {
	SimilarityThreshold      float64                   `yaml:"similarityThreshold"`
	KeywordOverlapThreshold  float64                   `yaml:"keywordOverlapThreshold"`
	IncludeInferred          bool                      `yaml:"includeInferred"`
	UseSemanticSimilarity    bool                      `yaml:"useSemanticSimilarity"`
	SemanticWeight           float64                   `yaml:"semanticWeight"`
	EnableDuplicateDetection bool                      `yaml:"enableDuplicateDetection"`
	UseContrastiveICL        bool                      `yaml:"useContrastiveICL,omitempty"`
	ContrastiveExamples      *ContrastiveExamplesBlock `yaml:"contrastiveExamples,omitempty"`
	LLMConfig                *LLMConfigBlock           `yaml:"llmConfig,omitempty"`
	PromptTemplate           string                    `yaml:"promptTemplate,omitempty"`
}

// ContrastiveExamplesBlock is the few-shot pair configuration for
// Contrastive-ICL.
type ContrastiveExamplesBlock struct {
	Positive []ExamplePairBlock `yaml:"positive"`
	Negative []ExamplePairBlock `yaml:"negative"`
}

// ExamplePairBlock is one few-shot exemplar.
type ExamplePairBlock struct {
	ChunkA string `yaml:"chunkA"`
	ChunkB string `yaml:"chunkB"`
}

// LLMConfigBlock configures the Contrastive-ICL judgment call.
type LLMConfigBlock struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	APIKeyEnv   string  `yaml:"apiKeyEnv,omitempty"`
}

// ValidationBlock controls the Validation stage and experiment
// persistence.
type ValidationBlock struct {
	RunOnSave          bool     `yaml:"runOnSave"`
	AutoSaveExperiment bool     `yaml:"autoSaveExperiment"`
	Scenarios          []string `yaml:"scenarios"`
}

// MetadataBlock carries the provenance fields stored alongside an
// experiment row.
type MetadataBlock struct {
	Baseline  bool     `yaml:"baseline"`
	GitCommit string   `yaml:"git_commit,omitempty"`
	PaperIDs  []string `yaml:"paper_ids,omitempty"`
}
