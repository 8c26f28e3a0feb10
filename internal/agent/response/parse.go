// Package response turns raw provider text into structured solutions.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

var (
	ErrNoJSON     = errors.New("response contains no JSON object")
	ErrNoProblems = errors.New(`response has no "problems" field`)
)

// SolveResponse is the parsed result of a solve call
type SolveResponse struct {
	Problems []models.ProblemSolution `json:"problems"`
}

type rawSolve struct {
	Problems *[]models.ProblemSolution `json:"problems"`
}

// ParseSolveResponse extracts the problems list. A present but empty list
// is a valid result.
func ParseSolveResponse(text string) (*SolveResponse, error) {
	body, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var raw rawSolve
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode solve response: %w", err)
	}
	if raw.Problems == nil {
		return nil, ErrNoProblems
	}

	problems := *raw.Problems
	for i := range problems {
		problems[i].Problem = strings.TrimSpace(problems[i].Problem)
		problems[i].Answer = strings.TrimSpace(problems[i].Answer)
		if problems[i].Steps == nil {
			problems[i].Steps = []models.ExplanationStep{}
		}
	}
	if problems == nil {
		problems = []models.ProblemSolution{}
	}
	return &SolveResponse{Problems: problems}, nil
}

// extractJSON strips markdown fences, then falls back to the outermost
// braces
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
