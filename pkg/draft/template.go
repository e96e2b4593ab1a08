package draft

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// TemplateMeta splits a document template into its YAML frontmatter and
// body. The frontmatter declares default values for template variables;
// nil metadata means the document has no frontmatter block.
func TemplateMeta(content string) (map[string]interface{}, string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			meta.Meta,
		),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert([]byte(content), &buf, parser.WithContext(pctx)); err != nil {
		return nil, content, errors.Wrap(err, "failed to parse template frontmatter")
	}

	return meta.Get(pctx), extractBody(content), nil
}

// RenderTemplate renders a document template with text/template. The
// template's frontmatter supplies default variable values and vars
// overrides them; the body references variables as {{.name}}.
func RenderTemplate(content string, vars map[string]interface{}) (string, error) {
	defaults, body, err := TemplateMeta(content)
	if err != nil {
		return "", err
	}

	data := make(map[string]interface{}, len(defaults)+len(vars))
	for k, v := range defaults {
		data[k] = v
	}
	for k, v := range vars {
		data[k] = v
	}

	tmpl, err := template.New("document").Parse(body)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template body")
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}

	return out.String(), nil
}

// extractBody returns the markdown body after the YAML frontmatter block.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.Join(lines[frontmatterEnd+1:], "\n")
}
