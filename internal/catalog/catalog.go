// Package catalog holds the static table of known LLM models and their
// pricing and performance characteristics.
package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ModelDescriptor describes one model: identity, per-1K-token pricing, and
// normalized performance scores. Descriptors are immutable after load.
type ModelDescriptor struct {
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	InputPer1K  float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" json:"output_per_1k"`
	Quality     float64 `yaml:"quality" json:"quality"`
	Speed       float64 `yaml:"speed" json:"speed"`
	Reliability float64 `yaml:"reliability" json:"reliability"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// Key returns the "provider/model" identifier used for circuit breaker and
// usage accounting lookups.
func (d ModelDescriptor) Key() string {
	return d.Provider + "/" + d.Model
}

// Default returns the built-in model table. Order matters: the scorer breaks
// ties by first-seen position.
func Default() []ModelDescriptor {
	return []ModelDescriptor{
		{
			Provider: ProviderOpenAI, Model: "gpt-4o",
			InputPer1K: 0.0025, OutputPer1K: 0.010,
			Quality: 0.90, Speed: 0.75, Reliability: 0.95,
			MaxTokens: 16384,
		},
		{
			Provider: ProviderOpenAI, Model: "gpt-4o-mini",
			InputPer1K: 0.00015, OutputPer1K: 0.0006,
			Quality: 0.72, Speed: 0.92, Reliability: 0.94,
			MaxTokens: 16384,
		},
		{
			Provider: ProviderAnthropic, Model: "claude-opus-4-6",
			InputPer1K: 0.015, OutputPer1K: 0.075,
			Quality: 0.98, Speed: 0.55, Reliability: 0.93,
			MaxTokens: 32000,
		},
		{
			Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929",
			InputPer1K: 0.003, OutputPer1K: 0.015,
			Quality: 0.92, Speed: 0.78, Reliability: 0.96,
			MaxTokens: 64000,
		},
		{
			Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001",
			InputPer1K: 0.0008, OutputPer1K: 0.004,
			Quality: 0.75, Speed: 0.95, Reliability: 0.95,
			MaxTokens: 64000,
		},
	}
}

// Find returns the descriptor for the given provider and model, or nil.
func Find(models []ModelDescriptor, provider, model string) *ModelDescriptor {
	for i := range models {
		if models[i].Provider == provider && models[i].Model == model {
			return &models[i]
		}
	}
	return nil
}

// LoadFile reads a model table from a YAML file, replacing the built-in
// defaults. Used to adjust pricing without a rebuild.
func LoadFile(path string) ([]ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read file")
	}

	var models []ModelDescriptor
	if err := yaml.Unmarshal(data, &models); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal")
	}
	if len(models) == 0 {
		return nil, eris.New("catalog: file contains no models")
	}
	return models, nil
}
