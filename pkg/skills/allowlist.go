package skills

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Allowlist restricts which skill ids are exposed to the model. Patterns
// use glob syntax, so "doc-*" admits every id with that prefix. An empty
// allowlist admits everything.
type Allowlist []glob.Glob

// CompileAllowlist compiles the configured patterns. A pattern that fails
// to compile is a configuration error and is surfaced rather than skipped.
func CompileAllowlist(patterns []string) (Allowlist, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make(Allowlist, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid skill allowlist pattern %q", pattern)
		}
		out = append(out, g)
	}
	return out, nil
}

// Allows reports whether the skill id passes the allowlist.
func (a Allowlist) Allows(id string) bool {
	if len(a) == 0 {
		return true
	}
	for _, g := range a {
		if g.Match(id) {
			return true
		}
	}
	return false
}

// Filter returns the subset of the catalog admitted by the allowlist,
// preserving order.
func (a Allowlist) Filter(catalog []*Skill) []*Skill {
	if len(a) == 0 {
		return catalog
	}
	out := make([]*Skill, 0, len(catalog))
	for _, skill := range catalog {
		if a.Allows(skill.ID) {
			out = append(out, skill)
		}
	}
	return out
}
