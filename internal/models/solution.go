package models

// SolutionStatus is the status of a page's AI result set
type SolutionStatus string

const (
	SolutionProcessing SolutionStatus = "processing"
	SolutionSuccess    SolutionStatus = "success"
	SolutionFailed     SolutionStatus = "failed"
)

// ExplanationStep is one incremental hint
type ExplanationStep struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ProblemSolution is one detected problem on a page
type ProblemSolution struct {
	Problem     string            `json:"problem"`
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation"`
	Steps       []ExplanationStep `json:"steps"`
}

// Clone deep-copies the problem
func (p ProblemSolution) Clone() ProblemSolution {
	p.Steps = append([]ExplanationStep{}, p.Steps...)
	return p
}

// Solution is the AI-derived result set for one FileItem, keyed by its locator.
// StreamedOutput lives in memory only and is never persisted.
type Solution struct {
	ImageURL       string            `json:"imageUrl"`
	Status         SolutionStatus    `json:"status"`
	StreamedOutput string            `json:"streamedOutput,omitempty"`
	Problems       []ProblemSolution `json:"problems"`
	AiSourceID     string            `json:"aiSourceId,omitempty"`
}

// Clone deep-copies the solution
func (s Solution) Clone() Solution {
	problems := make([]ProblemSolution, len(s.Problems))
	for i, p := range s.Problems {
		problems[i] = p.Clone()
	}
	s.Problems = problems
	return s
}

// Durable returns the copy that is allowed into the record store
func (s Solution) Durable() Solution {
	c := s.Clone()
	c.StreamedOutput = ""
	return c
}

// SolutionPatch is a partial update of a Solution. Nil fields are left unchanged.
type SolutionPatch struct {
	Status     *SolutionStatus
	Problems   []ProblemSolution
	AiSourceID *string
}

// ProblemPatch replaces the mutable fields of one problem
type ProblemPatch struct {
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation"`
	Steps       []ExplanationStep `json:"steps"`
}
