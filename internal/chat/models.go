package chat

import (
	"fmt"

	"github.com/dbv111m/tb1/internal/config"
)

// Model is one node of a fallback chain. Terminal tiers have no Fallback.
type Model struct {
	Name          string
	ContextBudget int
	Precise       bool
	Fallback      *Model
}

// defaultContextBudget applies to models requested by name but absent from
// the table.
const defaultContextBudget = 10000

type ModelRegistry struct {
	models map[string]*Model
	def    *Model
}

// NewModelRegistry links the declared specs into explicit fallback chains.
// Unknown fallback targets and cycles are configuration errors.
func NewModelRegistry(mf *config.ModelsFile) (*ModelRegistry, error) {
	models := make(map[string]*Model, len(mf.Models))
	for _, spec := range mf.Models {
		if spec.Name == "" {
			return nil, fmt.Errorf("model with empty name")
		}
		if _, dup := models[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", spec.Name)
		}
		budget := spec.ContextBudget
		if budget <= 0 {
			budget = defaultContextBudget
		}
		models[spec.Name] = &Model{
			Name:          spec.Name,
			ContextBudget: budget,
			Precise:       spec.Precise,
		}
	}

	for _, spec := range mf.Models {
		if spec.Fallback == "" {
			continue
		}
		next, ok := models[spec.Fallback]
		if !ok {
			return nil, fmt.Errorf("model %q falls back to unknown model %q", spec.Name, spec.Fallback)
		}
		models[spec.Name].Fallback = next
	}

	for name, m := range models {
		steps := 0
		for n := m; n != nil; n = n.Fallback {
			steps++
			if steps > len(models) {
				return nil, fmt.Errorf("fallback cycle through model %q", name)
			}
		}
	}

	def, ok := models[mf.Default]
	if !ok {
		return nil, fmt.Errorf("default model %q not declared", mf.Default)
	}

	return &ModelRegistry{models: models, def: def}, nil
}

// Get resolves a requested model name. Names outside the table become
// terminal descriptors with the default budget, so callers may ask for
// any model the provider serves.
func (r *ModelRegistry) Get(name string) *Model {
	if name == "" {
		return r.def
	}
	if m, ok := r.models[name]; ok {
		return m
	}
	return &Model{Name: name, ContextBudget: defaultContextBudget}
}

func (r *ModelRegistry) Default() *Model {
	return r.def
}
