package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchel-sh/satchel/pkg/llm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test_history.db")

	store, err := NewStore(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now()
	run := Run{
		ID:       "run-1",
		SkillID:  "report-writer",
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5-20250929",
		Prompt:   "Draft the quarterly report",
		Messages: []llm.Message{
			{Role: "user", Content: "Draft the quarterly report"},
			{Role: "assistant", Content: "Here is the draft."},
		},
		Usage: llm.Usage{
			InputTokens:  100,
			OutputTokens: 50,
		},
		CreatedAt: now,
	}

	err := store.Save(ctx, run)
	require.NoError(t, err)

	loaded, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.SkillID, loaded.SkillID)
	assert.Equal(t, run.Provider, loaded.Provider)
	assert.Equal(t, run.Model, loaded.Model)
	assert.Equal(t, run.Prompt, loaded.Prompt)
	assert.Equal(t, run.Messages, loaded.Messages)
	assert.Equal(t, run.Usage.InputTokens, loaded.Usage.InputTokens)
	assert.Equal(t, run.Usage.OutputTokens, loaded.Usage.OutputTokens)

	_, err = store.Get(ctx, "non-existent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "run-1", summaries[0].ID)
	assert.Equal(t, 2, summaries[0].MessageCount)

	err = store.Delete(ctx, "run-1")
	require.NoError(t, err)

	_, err = store.Get(ctx, "run-1")
	assert.Error(t, err)

	summaries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 0)
}

func TestStore_SaveUpdatesExistingRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Now().Add(-time.Hour)
	run := Run{
		ID:        "run-1",
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-5-20250929",
		Prompt:    "hello",
		Messages:  []llm.Message{{Role: "user", Content: "hello"}},
		CreatedAt: created,
	}
	require.NoError(t, store.Save(ctx, run))

	run.Messages = append(run.Messages, llm.Message{Role: "assistant", Content: "hi"})
	run.Usage = llm.Usage{InputTokens: 10, OutputTokens: 5}
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 2)
	assert.Equal(t, 10, loaded.Usage.InputTokens)
	assert.WithinDuration(t, created, loaded.CreatedAt, time.Second)
	assert.True(t, loaded.UpdatedAt.After(loaded.CreatedAt))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCount)
}

func TestStore_ListOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now()
	runs := []Run{
		{ID: "run-old", Prompt: "first", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "run-new", Prompt: "third", CreatedAt: now},
		{ID: "run-mid", Prompt: "second", CreatedAt: now.Add(-time.Hour)},
	}
	for _, run := range runs {
		require.NoError(t, store.Save(ctx, run))
	}

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "run-new", summaries[0].ID)
	assert.Equal(t, "run-mid", summaries[1].ID)
	assert.Equal(t, "run-old", summaries[2].ID)
}

func TestStore_ListBySkill(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now()
	require.NoError(t, store.Save(ctx, Run{ID: "run-1", SkillID: "report-writer", CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, Run{ID: "run-2", SkillID: "code-reviewer", CreatedAt: now}))
	require.NoError(t, store.Save(ctx, Run{ID: "run-3", SkillID: "report-writer", CreatedAt: now}))

	summaries, err := store.ListBySkill(ctx, "report-writer")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-3", summaries[0].ID)
	assert.Equal(t, "run-1", summaries[1].ID)

	summaries, err = store.ListBySkill(ctx, "unknown-skill")
	require.NoError(t, err)
	assert.Len(t, summaries, 0)
}

func TestStore_SaveRequiresID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Save(ctx, Run{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id is required")
}

func TestStore_DeleteMissingRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Delete(ctx, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestMigrationRunner_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test_history.db")

	db, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx, allMigrations()))

	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, len(allMigrations()))

	// Re-running is a no-op
	require.NoError(t, runner.Run(ctx, allMigrations()))
	versions, err = runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, len(allMigrations()))
}

func TestMigrationRunner_Rollback(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test_history.db")

	db, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	runner := NewMigrationRunner(db)
	migrations := allMigrations()
	require.NoError(t, runner.Run(ctx, migrations))

	require.NoError(t, runner.Rollback(ctx, migrations))

	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, len(migrations)-1)
}
