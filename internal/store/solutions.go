package store

import (
	"context"

	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
	"github.com/yangshenhuai/skid-homework/pkg/recordstore"
)

// AddSolution stores a new solution under its locator. An existing solution
// for the same locator is never replaced, and a locator no item owns is refused.
func (s *Store) AddSolution(sol models.Solution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.itemByURL(sol.ImageURL) == nil {
		s.logger.Warn("Solution for unknown item dropped", logger.String("url", sol.ImageURL))
		return
	}
	if _, exists := s.solutions[sol.ImageURL]; exists {
		s.logger.Error("Solution already exists", logger.String("url", sol.ImageURL))
		return
	}
	c := sol.Clone()
	s.solutions[sol.ImageURL] = &c
	s.persistSolution("addSolution", sol.ImageURL)
	s.publish(models.Event{Type: models.EventSolutionChanged, URL: sol.ImageURL})
}

// UpdateSolution merges patch into an existing solution. Becoming success
// clears the streamed output in the same step.
func (s *Store) UpdateSolution(url string, patch models.SolutionPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sol, ok := s.solutions[url]
	if !ok {
		s.logger.Error("Cannot update missing solution", logger.String("url", url))
		return
	}
	if patch.Status != nil {
		sol.Status = *patch.Status
		if sol.Status == models.SolutionSuccess {
			sol.StreamedOutput = ""
		}
	}
	if patch.Problems != nil {
		problems := make([]models.ProblemSolution, len(patch.Problems))
		for i, p := range patch.Problems {
			problems[i] = p.Clone()
		}
		sol.Problems = problems
	}
	if patch.AiSourceID != nil {
		sol.AiSourceID = *patch.AiSourceID
	}
	s.persistSolution("updateSolution", url)
	s.publish(models.Event{Type: models.EventSolutionChanged, URL: url})
}

// AppendStreamedOutput adds a chunk to the in-memory stream buffer
func (s *Store) AppendStreamedOutput(url, chunk string) {
	s.mu.Lock()
	sol, ok := s.solutions[url]
	if ok {
		sol.StreamedOutput += chunk
	}
	s.mu.Unlock()
	if ok {
		s.publish(models.Event{Type: models.EventStreamChunk, URL: url, Chunk: chunk})
	}
}

// ClearStreamedOutput empties the in-memory stream buffer
func (s *Store) ClearStreamedOutput(url string) {
	s.mu.Lock()
	sol, ok := s.solutions[url]
	if ok {
		sol.StreamedOutput = ""
	}
	s.mu.Unlock()
	if ok {
		s.publish(models.Event{Type: models.EventSolutionChanged, URL: url})
	}
}

// RemoveSolutionsByURLs deletes the given solutions and clears them from
// the owning records
func (s *Store) RemoveSolutionsByURLs(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range urls {
		delete(s.solutions, url)
		if it := s.itemByURL(url); it != nil {
			s.persistPatch("removeSolution", it, recordstore.Patch{ClearSolution: true})
		}
		s.publish(models.Event{Type: models.EventSolutionChanged, URL: url})
	}
}

// ClearAllSolutions deletes every solution, keeping the items
func (s *Store) ClearAllSolutions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.solutions = make(map[string]*models.Solution)
	s.enqueue("clearSolutions", "*", func(ctx context.Context) error {
		return s.records.ClearSolutions(ctx)
	})
	s.publish(models.Event{Type: models.EventSolutionChanged})
}

// UpdateProblem rewrites answer, explanation and steps of one problem.
// A missing solution or an index out of range is logged and ignored.
func (s *Store) UpdateProblem(url string, index int, patch models.ProblemPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sol, ok := s.solutions[url]
	if !ok {
		s.logger.Warn("No solution for problem update", logger.String("url", url))
		return false
	}
	if index < 0 || index >= len(sol.Problems) {
		s.logger.Warn("Problem index out of range",
			logger.String("url", url),
			logger.Int("index", index),
			logger.Int("problems", len(sol.Problems)),
		)
		return false
	}
	p := &sol.Problems[index]
	p.Answer = patch.Answer
	p.Explanation = patch.Explanation
	p.Steps = append([]models.ExplanationStep{}, patch.Steps...)

	s.persistSolution("updateProblem", url)
	s.publish(models.Event{Type: models.EventSolutionChanged, URL: url})
	return true
}

// Solution returns a copy of the solution keyed by url
func (s *Store) Solution(url string) (models.Solution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sol, ok := s.solutions[url]
	if !ok {
		return models.Solution{}, false
	}
	return sol.Clone(), true
}

// Solutions returns copies of all solutions in item order
func (s *Store) Solutions() []models.Solution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Solution, 0, len(s.solutions))
	for _, it := range s.items {
		if sol, ok := s.solutions[it.URL]; ok {
			out = append(out, sol.Clone())
		}
	}
	return out
}

// persistSolution writes the current solution into the owning record.
// Solutions without an item stay in memory only.
func (s *Store) persistSolution(op, url string) {
	it := s.itemByURL(url)
	if it == nil {
		return
	}
	d := s.solutions[url].Durable()
	s.persistPatch(op, it, recordstore.Patch{Solution: &d})
}
