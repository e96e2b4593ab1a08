package draft

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one heading extracted from a markdown document.
type Heading struct {
	Level int
	Text  string
}

// Headings parses the markdown source and returns its headings in document
// order.
func Headings(source string) []Heading {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		headings = append(headings, Heading{
			Level: heading.Level,
			Text:  nodeText(heading, src),
		})
		return ast.WalkSkipChildren, nil
	})

	return headings
}

// Outline renders the heading structure of a markdown document as a
// markdown bullet list. Nesting is relative to the shallowest heading in
// the document, so a document that starts at "##" is not indented.
// Headings deeper than maxDepth are dropped; zero means no depth limit.
func Outline(source string, maxDepth int) string {
	headings := Headings(source)
	if maxDepth > 0 {
		kept := headings[:0]
		for _, h := range headings {
			if h.Level <= maxDepth {
				kept = append(kept, h)
			}
		}
		headings = kept
	}
	if len(headings) == 0 {
		return ""
	}

	minLevel := headings[0].Level
	for _, h := range headings {
		if h.Level < minLevel {
			minLevel = h.Level
		}
	}

	var b strings.Builder
	for _, h := range headings {
		b.WriteString(strings.Repeat("  ", h.Level-minLevel))
		b.WriteString("- ")
		b.WriteString(h.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// nodeText collects the plain text of a node's inline children, dropping
// markup like emphasis and code span delimiters.
func nodeText(node ast.Node, source []byte) string {
	var buf strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
				continue
			}
			walk(c)
		}
	}
	walk(node)
	return buf.String()
}
