package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontmatter(t *testing.T) {
	meta, body, err := splitFrontmatter("---\nname: Test\ndescription: A test skill\ntags:\n  - a\n  - b\n---\n# Body text\n")
	require.NoError(t, err)

	assert.Equal(t, "Test", meta["name"])
	assert.Equal(t, "A test skill", meta["description"])
	assert.Equal(t, []any{"a", "b"}, meta["tags"])
	assert.Equal(t, "# Body text", body)
}

func TestSplitFrontmatterFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty document", ""},
		{"no leading delimiter", "# Just a heading\n\nSome text\n"},
		{"delimiter not at first byte", "\n---\nname: Test\n---\nbody\n"},
		{"indented delimiter", "  ---\nname: Test\n---\nbody\n"},
		{"unterminated block", "---\nname: Test\ndescription: no closing marker\n"},
		{"frontmatter is a sequence", "---\n- a\n- b\n---\nbody\n"},
		{"malformed yaml", "---\nname: [unclosed\n---\nbody\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := splitFrontmatter(tt.content)
			assert.Error(t, err)
		})
	}
}

func TestSplitFrontmatterEmptyBlock(t *testing.T) {
	meta, body, err := splitFrontmatter("---\n---\nbody only\n")
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.Equal(t, "body only", body)
}

func TestSplitFrontmatterEmptyBody(t *testing.T) {
	meta, body, err := splitFrontmatter("---\nname: Test\n---\n")
	require.NoError(t, err)
	assert.Equal(t, "Test", meta["name"])
	assert.Empty(t, body)
}

func TestSplitFrontmatterCRLF(t *testing.T) {
	meta, body, err := splitFrontmatter("---\r\nname: Windows\r\n---\r\nline one\r\nline two\r\n")
	require.NoError(t, err)
	assert.Equal(t, "Windows", meta["name"])
	assert.Contains(t, body, "line one")
	assert.Contains(t, body, "line two")
}

func TestApplyMetadata(t *testing.T) {
	t.Run("named fields", func(t *testing.T) {
		skill := &Skill{ID: "my-skill"}
		applyMetadata(skill, map[string]any{
			"name":        "My Skill",
			"description": "Does things",
			"version":     "1.2.0",
			"author":      "satchel",
			"category":    "docs",
			"tags":        []any{"a", "b"},
		})

		assert.Equal(t, "My Skill", skill.Name)
		assert.Equal(t, "Does things", skill.Description)
		assert.Equal(t, "1.2.0", skill.Version)
		assert.Equal(t, "satchel", skill.Author)
		assert.Equal(t, "docs", skill.Category)
		assert.Equal(t, []string{"a", "b"}, skill.Tags)
		assert.Nil(t, skill.Metadata)
	})

	t.Run("name falls back to id", func(t *testing.T) {
		skill := &Skill{ID: "folder-name"}
		applyMetadata(skill, map[string]any{"description": "no name here"})

		assert.Equal(t, "folder-name", skill.Name)
		assert.Equal(t, "no name here", skill.Description)
	})

	t.Run("unknown keys preserved in metadata", func(t *testing.T) {
		skill := &Skill{ID: "x"}
		applyMetadata(skill, map[string]any{
			"name":      "X",
			"license":   "MIT",
			"homepage":  "https://example.com",
			"min_turns": 3,
		})

		require.NotNil(t, skill.Metadata)
		assert.Equal(t, "MIT", skill.Metadata["license"])
		assert.Equal(t, "https://example.com", skill.Metadata["homepage"])
		assert.Equal(t, 3, skill.Metadata["min_turns"])
		assert.NotContains(t, skill.Metadata, "name")
	})

	t.Run("scalar coercion", func(t *testing.T) {
		skill := &Skill{ID: "x"}
		applyMetadata(skill, map[string]any{
			"version": 2,
			"tags":    "solo",
		})

		assert.Equal(t, "2", skill.Version)
		assert.Equal(t, []string{"solo"}, skill.Tags)
	})

	t.Run("missing optional fields", func(t *testing.T) {
		skill := &Skill{ID: "bare"}
		applyMetadata(skill, map[string]any{})

		assert.Equal(t, "bare", skill.Name)
		assert.Empty(t, skill.Description)
		assert.Empty(t, skill.Tags)
		assert.Nil(t, skill.Metadata)
	})
}
