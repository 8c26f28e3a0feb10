package converters

import (
	"fmt"
	"strings"
)

const DefaultTitle = "Homework Solutions"

// Labels are the fixed strings of the exported document
type Labels struct {
	Page        string
	Problem     string
	Answer      string
	Explanation string
	Steps       string

	EmptyProblem     string
	EmptyAnswer      string
	EmptyExplanation string
}

var DefaultLabels = Labels{
	Page:        "Page %d: %s",
	Problem:     "Problem",
	Answer:      "Answer",
	Explanation: "Explanation",
	Steps:       "Steps",

	EmptyProblem:     "_No problem statement detected._",
	EmptyAnswer:      "_No answer provided._",
	EmptyExplanation: "_No explanation provided._",
}

type MarkdownConverter struct {
	labels Labels
}

func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{labels: DefaultLabels}
}

// WithLabels returns a copy using labels
func (c *MarkdownConverter) WithLabels(labels Labels) *MarkdownConverter {
	return &MarkdownConverter{labels: labels}
}

func (c *MarkdownConverter) ContentType() string { return "text/markdown; charset=utf-8" }
func (c *MarkdownConverter) Extension() string   { return ".md" }

func (c *MarkdownConverter) Convert(title string, pages []Page) ([]byte, error) {
	pages = exportable(pages)
	if len(pages) == 0 {
		return nil, ErrNothingToExport
	}
	if title == "" {
		title = DefaultTitle
	}

	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	section := func(label, value, placeholder string) {
		line("**" + label + "**")
		line("")
		line(orPlaceholder(value, placeholder))
		line("")
	}

	line("# " + title)
	line("")
	for i, p := range pages {
		name := p.Item.DisplayName
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Image %d", i+1)
		}
		line("## " + fmt.Sprintf(c.labels.Page, i+1, name))
		line("")

		for j, prob := range p.Solution.Problems {
			line(fmt.Sprintf("### %s %d", c.labels.Problem, j+1))
			line("")
			section(c.labels.Problem, prob.Problem, c.labels.EmptyProblem)
			section(c.labels.Answer, prob.Answer, c.labels.EmptyAnswer)
			section(c.labels.Explanation, prob.Explanation, c.labels.EmptyExplanation)

			if len(prob.Steps) > 0 {
				line("**" + c.labels.Steps + "**")
				line("")
				for k, step := range prob.Steps {
					head := strings.TrimSpace(step.Title)
					if head == "" {
						head = fmt.Sprintf("Step %d", k+1)
					}
					line(fmt.Sprintf("%d. **%s** %s", k+1, head, indent(strings.TrimSpace(step.Content))))
				}
				line("")
			}
		}
	}
	return []byte(sb.String()), nil
}

func orPlaceholder(value, placeholder string) string {
	if strings.Join(strings.Fields(value), "") == "" {
		return placeholder
	}
	return value
}

// indent keeps multi-line step content inside its list item
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n   ")
}
