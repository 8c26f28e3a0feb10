package agent

import "strings"

// SolveSystemPrompt instructs a provider to read and solve one page
const SolveSystemPrompt = `You are a careful tutor. The user sends a photo or scan of a homework page.

1. Read every problem on the page. Keep the original wording and formulas; write math in LaTeX between $ signs.
2. Solve each problem. Give the final answer first, then a full explanation.
3. Break the explanation into short steps a student could follow one hint at a time.

Respond with a single JSON object and nothing else:
{
  "problems": [
    {
      "problem": "the problem statement",
      "answer": "the final answer",
      "explanation": "the complete explanation in markdown",
      "steps": [{"title": "short step title", "content": "what to do in this step"}]
    }
  ]
}

If the page contains no problems, respond with {"problems": []}.`

// BuildSolvePrompt appends per-source and global traits to the base prompt,
// source traits first
func BuildSolvePrompt(base, sourceTraits, globalTraits string) string {
	var sb strings.Builder
	sb.WriteString(base)
	if strings.TrimSpace(sourceTraits) != "" {
		sb.WriteString("\nUser defined prompts:\n<prompt>\n")
		sb.WriteString(sourceTraits)
		sb.WriteString("\n</prompt>\n")
	}
	if strings.TrimSpace(globalTraits) != "" {
		sb.WriteString("\nUser defined traits:\n<traits>\n")
		sb.WriteString(globalTraits)
		sb.WriteString("\n</traits>\n")
	}
	return sb.String()
}
