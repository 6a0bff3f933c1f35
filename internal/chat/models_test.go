package chat

import (
	"testing"

	"github.com/dbv111m/tb1/internal/config"
)

func TestModelRegistryDefaultTable(t *testing.T) {
	models, err := NewModelRegistry(config.DefaultModels())
	if err != nil {
		t.Fatalf("default table must build: %v", err)
	}

	m := models.Get("llama-3.1-405b-reasoning")
	chain := []string{m.Name}
	for m.Fallback != nil {
		m = m.Fallback
		chain = append(chain, m.Name)
	}

	want := []string{"llama-3.1-405b-reasoning", "llama-3.1-70b-versatile", "llama3-70b-8192"}
	if len(chain) != len(want) {
		t.Fatalf("chain %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestModelRegistryUnknownNameIsTerminal(t *testing.T) {
	models, _ := NewModelRegistry(config.DefaultModels())

	m := models.Get("some-future-model")
	if m.Name != "some-future-model" {
		t.Errorf("name %q", m.Name)
	}
	if m.Fallback != nil {
		t.Error("unknown models must be terminal")
	}
	if m.ContextBudget != defaultContextBudget {
		t.Errorf("budget %d, want %d", m.ContextBudget, defaultContextBudget)
	}
}

func TestModelRegistryEmptyNameUsesDefault(t *testing.T) {
	models, _ := NewModelRegistry(config.DefaultModels())

	if models.Get("") != models.Default() {
		t.Error("empty name must resolve to the default model")
	}
}

func TestModelRegistryUnknownFallback(t *testing.T) {
	_, err := NewModelRegistry(&config.ModelsFile{
		Default: "a",
		Models: []config.ModelSpec{
			{Name: "a", Fallback: "missing"},
		},
	})
	if err == nil {
		t.Error("unknown fallback target must fail")
	}
}

func TestModelRegistryCycle(t *testing.T) {
	_, err := NewModelRegistry(&config.ModelsFile{
		Default: "a",
		Models: []config.ModelSpec{
			{Name: "a", Fallback: "b"},
			{Name: "b", Fallback: "a"},
		},
	})
	if err == nil {
		t.Error("fallback cycle must fail")
	}
}

func TestModelRegistryUndeclaredDefault(t *testing.T) {
	_, err := NewModelRegistry(&config.ModelsFile{
		Default: "nope",
		Models:  []config.ModelSpec{{Name: "a"}},
	})
	if err == nil {
		t.Error("undeclared default must fail")
	}
}
