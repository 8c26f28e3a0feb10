package config

import (
	"fmt"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

type AIConfig struct {
	ActiveSourceID string            `yaml:"activeSourceId"`
	Sources        []models.AiSource `yaml:"sources"`
}

// Validate rejects duplicate ids and unknown provider kinds
func (c AIConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("ai.sources[%d]: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("ai.sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		switch s.Provider {
		case models.ProviderOpenAI, models.ProviderAnthropic, models.ProviderGemini, models.ProviderOllama:
		default:
			return fmt.Errorf("ai.sources[%d]: unknown provider %q", i, s.Provider)
		}
	}
	return nil
}

// Source looks up a configured source by id
func (c AIConfig) Source(id string) (models.AiSource, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return models.AiSource{}, false
}
