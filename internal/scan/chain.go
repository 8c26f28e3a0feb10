package scan

import "github.com/yangshenhuai/skid-homework/internal/models"

// BuildChain returns the enabled, credentialed sources in configured order
// with the active source moved to the front
func BuildChain(sources []models.AiSource, activeID string) []models.AiSource {
	chain := make([]models.AiSource, 0, len(sources))
	for _, s := range sources {
		if !s.Usable() {
			continue
		}
		if s.ID == activeID {
			chain = append([]models.AiSource{s}, chain...)
			continue
		}
		chain = append(chain, s)
	}
	return chain
}
