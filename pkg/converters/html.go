package converters

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLConverter renders the markdown export as a standalone page
type HTMLConverter struct {
	markdown *MarkdownConverter
	md       goldmark.Markdown
}

func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{
		markdown: NewMarkdownConverter(),
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (c *HTMLConverter) ContentType() string { return "text/html; charset=utf-8" }
func (c *HTMLConverter) Extension() string   { return ".html" }

func (c *HTMLConverter) Convert(title string, pages []Page) ([]byte, error) {
	src, err := c.markdown.Convert(title, pages)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = DefaultTitle
	}

	var body bytes.Buffer
	if err := c.md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
