package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchel-sh/satchel/pkg/history"
	"github.com/satchel-sh/satchel/pkg/llm"
)

func testSummaries() []history.Summary {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []history.Summary{
		{
			ID:           "run-b",
			SkillID:      "report-writer",
			Provider:     "anthropic",
			Model:        "claude-sonnet-4",
			Prompt:       "Write the Q2 report for the sales team using last quarter's numbers and the usual template",
			MessageCount: 4,
			Usage:        llm.Usage{InputTokens: 1200, OutputTokens: 500},
			CreatedAt:    created.Add(time.Hour),
		},
		{
			ID:           "run-a",
			SkillID:      "data-cleaner",
			Provider:     "anthropic",
			Model:        "claude-sonnet-4",
			Prompt:       "Clean up leads.csv",
			MessageCount: 2,
			Usage:        llm.Usage{InputTokens: 300, OutputTokens: 120},
			CreatedAt:    created,
		},
	}
}

func TestRunListOutputRenderTable(t *testing.T) {
	output := &RunListOutput{Runs: testSummaries(), Format: TableFormat}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))
	rendered := buf.String()

	assert.Contains(t, rendered, "ID")
	assert.Contains(t, rendered, "Prompt")
	assert.Contains(t, rendered, "run-a")
	assert.Contains(t, rendered, "run-b")
	assert.Contains(t, rendered, "report-writer")
	assert.Contains(t, rendered, "Clean up leads.csv")

	// Long prompts are clamped at a word boundary with an ellipsis
	assert.Contains(t, rendered, "...")
	assert.NotContains(t, rendered, "the usual template")
}

func TestRunListOutputRenderJSON(t *testing.T) {
	output := &RunListOutput{Runs: testSummaries(), Format: JSONFormat}

	var buf bytes.Buffer
	require.NoError(t, output.Render(&buf))

	var decoded []history.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded, 2)
	assert.Equal(t, "run-b", decoded[0].ID)
	assert.Equal(t, 4, decoded[0].MessageCount)
	assert.Equal(t, 1200, decoded[0].Usage.InputTokens)

	// Prompts are not clamped in JSON output
	assert.Contains(t, decoded[0].Prompt, "the usual template")
}
