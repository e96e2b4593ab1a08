package skills

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// splitFrontmatter splits a skill definition document into its YAML
// metadata block and the free-text body. The document must start with a
// bare "---" line at the very first byte, followed by the metadata block,
// a closing "---" line, then the body. Anything else fails the parse as a
// whole; there are no partial results.
func splitFrontmatter(content string) (map[string]any, string, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, "", errors.New("empty skill definition")
	}
	if strings.TrimRight(scanner.Text(), "\r") != frontmatterDelimiter {
		return nil, "", errors.New("definition does not start with a frontmatter delimiter")
	}

	var metaLines []string
	closed := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == frontmatterDelimiter {
			closed = true
			break
		}
		metaLines = append(metaLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, "", errors.Wrap(err, "scanning skill definition")
	}
	if !closed {
		return nil, "", errors.New("frontmatter block is not terminated")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, "", errors.Wrap(err, "scanning skill definition body")
	}

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(strings.Join(metaLines, "\n")), &meta); err != nil {
		return nil, "", errors.Wrap(err, "parsing frontmatter")
	}

	return meta, strings.Join(bodyLines, "\n"), nil
}

// applyMetadata maps the parsed frontmatter onto the skill's named fields.
// Unrecognized keys land in the Metadata catch-all so nothing authored in
// the frontmatter is dropped.
func applyMetadata(skill *Skill, meta map[string]any) {
	extra := map[string]any{}
	for key, value := range meta {
		switch key {
		case "name":
			skill.Name = asString(value)
		case "description":
			skill.Description = asString(value)
		case "version":
			skill.Version = asString(value)
		case "author":
			skill.Author = asString(value)
		case "category":
			skill.Category = asString(value)
		case "tags":
			skill.Tags = asStringSlice(value)
		default:
			extra[key] = value
		}
	}
	if skill.Name == "" {
		skill.Name = skill.ID
	}
	if len(extra) > 0 {
		skill.Metadata = extra
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func asStringSlice(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, asString(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
