package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelSpec declares one model tier: its character budget for assembled
// context, whether it belongs to the reasoning-oriented "precise" family
// (which gets a lower sampling temperature), and the next tier tried when
// it returns an empty response.
type ModelSpec struct {
	Name          string `yaml:"name"`
	ContextBudget int    `yaml:"context_budget"`
	Precise       bool   `yaml:"precise"`
	Fallback      string `yaml:"fallback,omitempty"`
}

type ModelsFile struct {
	Default string      `yaml:"default"`
	Models  []ModelSpec `yaml:"models"`
}

// LoadModels reads the model table from a YAML file. An empty path or a
// missing file yields the compiled-in defaults.
func LoadModels(path string) (*ModelsFile, error) {
	if path == "" {
		return DefaultModels(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultModels(), nil
	}
	if err != nil {
		return nil, err
	}

	var mf ModelsFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if mf.Default == "" || len(mf.Models) == 0 {
		return nil, fmt.Errorf("%s: default model and at least one model required", path)
	}

	return &mf, nil
}

// DefaultModels is the built-in llama tier table: each large model
// falls back to a smaller sibling, terminating at a model with no
// fallback.
func DefaultModels() *ModelsFile {
	return &ModelsFile{
		Default: "llama-3.1-70b-versatile",
		Models: []ModelSpec{
			{Name: "llama-3.1-405b-reasoning", ContextBudget: 50000, Precise: true, Fallback: "llama-3.1-70b-versatile"},
			{Name: "llama-3.1-70b-versatile", ContextBudget: 50000, Precise: true, Fallback: "llama3-70b-8192"},
			{Name: "llama-3.1-8b-instant", ContextBudget: 50000, Precise: true, Fallback: "llama3-8b-8192"},
			{Name: "llama3-70b-8192", ContextBudget: 10000, Precise: true},
			{Name: "llama3-8b-8192", ContextBudget: 10000, Precise: true},
			{Name: "mixtral-8x7b-32768", ContextBudget: 10000},
			{Name: "gemma2-9b-it", ContextBudget: 10000},
		},
	}
}
