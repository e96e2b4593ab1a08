package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadline(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     HeadlineOptions
		expected string
	}{
		{
			name:     "strips heading markers",
			input:    "## Quarterly Report",
			opts:     HeadlineOptions{},
			expected: "Quarterly Report",
		},
		{
			name:     "collapses whitespace",
			input:    "  Quarterly   Report\t2026  ",
			opts:     HeadlineOptions{},
			expected: "Quarterly Report 2026",
		},
		{
			name:     "strips configured prefixes case insensitively",
			input:    "draft: WIP: Quarterly Report",
			opts:     HeadlineOptions{StripPrefixes: []string{"Draft:", "WIP:"}},
			expected: "Quarterly Report",
		},
		{
			name:     "title case capitalizes words",
			input:    "state of the quarterly report",
			opts:     HeadlineOptions{Casing: CasingTitle},
			expected: "State of the Quarterly Report",
		},
		{
			name:     "title case capitalizes first and last small words",
			input:    "the report we waited for",
			opts:     HeadlineOptions{Casing: CasingTitle},
			expected: "The Report We Waited For",
		},
		{
			name:     "title case preserves acronyms",
			input:    "routing tools over MCP servers",
			opts:     HeadlineOptions{Casing: CasingTitle},
			expected: "Routing Tools Over MCP Servers",
		},
		{
			name:     "sentence case lowers everything after the first word",
			input:    "The Quarterly Report Draft",
			opts:     HeadlineOptions{Casing: CasingSentence},
			expected: "The quarterly report draft",
		},
		{
			name:     "sentence case preserves acronyms",
			input:    "Serving Skills Over MCP",
			opts:     HeadlineOptions{Casing: CasingSentence},
			expected: "Serving skills over MCP",
		},
		{
			name:     "clamps width at a word boundary",
			input:    "a very long headline that keeps going",
			opts:     HeadlineOptions{MaxWidth: 20},
			expected: "a very long...",
		},
		{
			name:     "short headlines are not clamped",
			input:    "short",
			opts:     HeadlineOptions{MaxWidth: 20},
			expected: "short",
		},
		{
			name:     "empty input",
			input:    "   ",
			opts:     HeadlineOptions{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Headline(tt.input, tt.opts))
		})
	}
}

func TestHeadlineCombined(t *testing.T) {
	got := Headline("# draft: the state of the union", HeadlineOptions{
		Casing:        CasingTitle,
		StripPrefixes: []string{"draft:"},
	})
	assert.Equal(t, "The State of the Union", got)
}
