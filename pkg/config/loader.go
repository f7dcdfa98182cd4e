package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads an experiment config file from path, rejects unknown YAML
// fields, merges it over DefaultExperimentConfig (user values win), and
// validates the result. This is the primary entry point: load → merge
// over defaults → validate.
func Load(path string) (*ExperimentConfig, error) {
	log := slog.With("config_path", path)
	log.Info("loading experiment configuration")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrConfigNotFound, err))
	}

	var user ExperimentConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&user); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	merged := DefaultExperimentConfig()
	if err := mergo.Merge(&merged, user, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("failed to merge user config over defaults: %w", err))
	}

	if err := Validate(&merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("experiment configuration loaded", "name", merged.Name)
	return &merged, nil
}
