package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	return path
}

func TestLoad_MergesUserOverridesOverDefaults(t *testing.T) {
	path := writeTempConfig(t, `
name: duplicate-detection-eval
description: validate duplicate relation inference
embedding:
  model: text-embedding-3-large
  dimensions: 3072
  batchSize: 32
chunking:
  strategy: semantic
  maxChunkSize: 500
  overlap: 50
retrieval:
  similarityThreshold: 0.8
  chunkLimit: 5
relationInference:
  similarityThreshold: 0.9
  keywordOverlapThreshold: 0.6
validation:
  runOnSave: true
  autoSaveExperiment: true
  scenarios: [normal, stress]
metadata:
  baseline: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "duplicate-detection-eval", cfg.Name)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dimensions)
	assert.Equal(t, "semantic", cfg.Chunking.Strategy)
	assert.Equal(t, 0.8, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 0.9, cfg.RelationInference.SimilarityThreshold)
	// Unset fields still inherit the built-in default.
	assert.True(t, cfg.RelationInference.EnableDuplicateDetection)
	assert.Equal(t, []string{"normal", "stress"}, cfg.Validation.Scenarios)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, `
name: bad-config
notARealField: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileReturnsLoadError(t *testing.T) {
	_, err := Load("/nonexistent/path/experiment.yaml")
	require.Error(t, err)
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoad_RejectsInvalidChunkingConfig(t *testing.T) {
	path := writeTempConfig(t, `
name: bad-chunking
chunking:
  strategy: fixed-size
  maxChunkSize: 100
  overlap: 200
`)
	_, err := Load(path)
	require.Error(t, err)
}
