package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillResourceTool_Name(t *testing.T) {
	loader, _ := newTestLoader(t)
	tool := NewSkillResourceTool(loader)
	assert.Equal(t, "skill_resource", tool.Name())
}

func TestSkillResourceTool_ValidateInput(t *testing.T) {
	loader, _ := newTestLoader(t)
	tool := NewSkillResourceTool(loader)

	t.Run("valid input", func(t *testing.T) {
		err := tool.ValidateInput(NewBasicState(), `{"skill_id": "report-writer", "path": "references/style-guide.md"}`)
		assert.NoError(t, err)
	})

	t.Run("missing skill_id", func(t *testing.T) {
		err := tool.ValidateInput(NewBasicState(), `{"path": "references/style-guide.md"}`)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "skill_id is required")
	})

	t.Run("missing path", func(t *testing.T) {
		err := tool.ValidateInput(NewBasicState(), `{"skill_id": "report-writer"}`)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		err := tool.ValidateInput(NewBasicState(), `not json`)
		assert.Error(t, err)
	})
}

func TestSkillResourceTool_Execute(t *testing.T) {
	t.Run("reads a bundled file", func(t *testing.T) {
		loader, baseDir := newTestLoader(t)
		skillDir := writeTestSkill(t, baseDir, "report-writer", reportWriterSkill)
		writeTestResource(t, skillDir, "references/style-guide.md", "Use short sentences.")

		tool := NewSkillResourceTool(loader)
		result := tool.Execute(context.Background(), NewBasicState(), `{"skill_id": "report-writer", "path": "references/style-guide.md"}`)

		require.False(t, result.IsError(), result.GetError())
		assert.Equal(t, "Use short sentences.", result.GetResult())
		assert.Contains(t, result.AssistantFacing(), "# Resource: references/style-guide.md (skill: report-writer)")
		assert.Contains(t, result.AssistantFacing(), "Use short sentences.")
	})

	t.Run("unknown skill", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		tool := NewSkillResourceTool(loader)
		result := tool.Execute(context.Background(), NewBasicState(), `{"skill_id": "unknown", "path": "references/style-guide.md"}`)

		assert.True(t, result.IsError())
		assert.Contains(t, result.GetError(), "skill 'unknown' not found")
	})

	t.Run("unknown resource lists alternatives", func(t *testing.T) {
		loader, baseDir := newTestLoader(t)
		skillDir := writeTestSkill(t, baseDir, "report-writer", reportWriterSkill)
		writeTestResource(t, skillDir, "references/style-guide.md", "Use short sentences.")

		tool := NewSkillResourceTool(loader)
		result := tool.Execute(context.Background(), NewBasicState(), `{"skill_id": "report-writer", "path": "references/missing.md"}`)

		assert.True(t, result.IsError())
		assert.Contains(t, result.GetError(), "references/missing.md")
		assert.Contains(t, result.GetError(), "references/style-guide.md")
	})

	t.Run("file removed after discovery", func(t *testing.T) {
		loader, baseDir := newTestLoader(t)
		skillDir := writeTestSkill(t, baseDir, "report-writer", reportWriterSkill)
		writeTestResource(t, skillDir, "references/style-guide.md", "Use short sentences.")

		tool := NewSkillResourceTool(loader)

		skill, err := loader.Load(context.Background(), "report-writer")
		require.NoError(t, err)
		require.NotNil(t, skill)

		require.NoError(t, os.Remove(filepath.Join(skillDir, "references", "style-guide.md")))

		result := tool.Execute(context.Background(), NewBasicState(), `{"skill_id": "report-writer", "path": "references/style-guide.md"}`)
		assert.True(t, result.IsError())
		assert.Contains(t, result.GetError(), "no longer available")
	})

	t.Run("second read is served from the handle", func(t *testing.T) {
		loader, baseDir := newTestLoader(t)
		skillDir := writeTestSkill(t, baseDir, "report-writer", reportWriterSkill)
		writeTestResource(t, skillDir, "references/style-guide.md", "Use short sentences.")

		tool := NewSkillResourceTool(loader)
		input := `{"skill_id": "report-writer", "path": "references/style-guide.md"}`

		first := tool.Execute(context.Background(), NewBasicState(), input)
		require.False(t, first.IsError())

		require.NoError(t, os.Remove(filepath.Join(skillDir, "references", "style-guide.md")))

		second := tool.Execute(context.Background(), NewBasicState(), input)
		require.False(t, second.IsError())
		assert.Equal(t, "Use short sentences.", second.GetResult())
	})
}

func TestSkillResourceTool_TracingKVs(t *testing.T) {
	loader, _ := newTestLoader(t)
	tool := NewSkillResourceTool(loader)

	kvs, err := tool.TracingKVs(`{"skill_id": "report-writer", "path": "references/style-guide.md"}`)
	require.NoError(t, err)
	assert.Len(t, kvs, 2)
}
