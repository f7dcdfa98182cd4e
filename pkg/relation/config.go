package relation

import (
	"errors"
	"fmt"
)

// Sentinel ConfigErrors: invalid weight/threshold outside [0,1] is fatal at
// construction time, never a per-pair failure.
var (
	ErrInvalidThreshold = errors.New("relation: threshold must be in [0,1]")
	ErrInvalidWeight    = errors.New("relation: weight must be in [0,1]")
)

// ContrastiveExamples are the few-shot pairs fed to the Contrastive-ICL
// prompt template.
type ContrastiveExamples struct {
	Positive []ExamplePair
	Negative []ExamplePair
}

// ExamplePair is one few-shot exemplar: two chunks of text. Whether they
// count as related is given by which ContrastiveExamples list holds it.
type ExamplePair struct {
	ChunkA string
	ChunkB string
}

// LLMConfig configures the Contrastive-ICL judgment call.
type LLMConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
}

// Config is the fully-enumerated relation-inference configuration from
// , defaults as documented there.
type Config struct {
	SimilarityThreshold      float64
	KeywordOverlapThreshold  float64
	IncludeInferred          bool
	UseSemanticSimilarity    bool
	SemanticWeight           float64
	EnableDuplicateDetection bool
	UseContrastiveICL        bool
	ContrastiveExamples      ContrastiveExamples
	LLMConfig                LLMConfig
	PromptTemplate           string

	// LLMConcurrency bounds the number of concurrent Contrastive-ICL calls
	// Zero means sequential (concurrency 1).
	LLMConcurrency int
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:      0.85,
		KeywordOverlapThreshold:  0.65,
		IncludeInferred:          true,
		UseSemanticSimilarity:    false,
		SemanticWeight:           0.7,
		EnableDuplicateDetection: true,
		UseContrastiveICL:        false,
		PromptTemplate:           DefaultPromptTemplate,
		LLMConcurrency:           4,
	}
}

// DefaultPromptTemplate is the placeholder-carrying prompt used by
// Contrastive-ICL.
const DefaultPromptTemplate = `You are judging whether two pieces of text describe the same underlying topic.

Positive examples (RELATED):
{{positiveExamples}}

Negative examples (NOT_RELATED):
{{negativeExamples}}

Now judge this pair. Respond with exactly one token: RELATED or NOT_RELATED.

Text 1:
{{chunk1}}

Text 2:
{{chunk2}}
`

// Validate enforces the construction-time ConfigError checks from
func (c Config) Validate() error {
	if err := checkUnit(c.SimilarityThreshold, "similarityThreshold"); err != nil {
		return err
	}
	if err := checkUnit(c.KeywordOverlapThreshold, "keywordOverlapThreshold"); err != nil {
		return err
	}
	if c.SemanticWeight < 0 || c.SemanticWeight > 1 {
		return fmt.Errorf("%w: semanticWeight=%v", ErrInvalidWeight, c.SemanticWeight)
	}
	return nil
}

func checkUnit(v float64, name string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidThreshold, name, v)
	}
	return nil
}
