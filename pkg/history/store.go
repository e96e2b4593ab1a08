package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Store persists run records in SQLite.
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// NewStore opens the database at dbPath and applies pending migrations.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	runner := NewMigrationRunner(db)
	if err := runner.Run(ctx, allMigrations()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// NewDefaultStore opens the store at the default database path.
func NewDefaultStore(ctx context.Context) (*Store, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStore(ctx, dbPath)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or updates a run record. CreatedAt is preserved on update.
func (s *Store) Save(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}

	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	query := `
		INSERT INTO runs (
			id, skill_id, provider, model, prompt,
			message_count, messages, usage, created_at, updated_at
		) VALUES (
			:id, :skill_id, :provider, :model, :prompt,
			:message_count, :messages, :usage, :created_at, :updated_at
		)
		ON CONFLICT(id) DO UPDATE SET
			skill_id = excluded.skill_id,
			provider = excluded.provider,
			model = excluded.model,
			prompt = excluded.prompt,
			message_count = excluded.message_count,
			messages = excluded.messages,
			usage = excluded.usage,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, fromRun(run)); err != nil {
		return errors.Wrap(err, "failed to save run record")
	}

	return nil
}

// Get retrieves a run record by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var dbRecord dbRun

	query := `SELECT id, skill_id, provider, model, prompt,
		message_count, messages, usage, created_at, updated_at
		FROM runs WHERE id = ?`
	err := s.db.GetContext(ctx, &dbRecord, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, errors.Errorf("run not found: %s", id)
		}
		return Run{}, errors.Wrap(err, "failed to load run record")
	}

	return dbRecord.toRun(), nil
}

// List returns run summaries sorted by creation time, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	var dbSummaries []dbRunSummary

	query := `SELECT id, skill_id, provider, model, prompt,
		message_count, usage, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &dbSummaries, query); err != nil {
		return nil, errors.Wrap(err, "failed to query run summaries")
	}

	summaries := make([]Summary, 0, len(dbSummaries))
	for i := range dbSummaries {
		summaries = append(summaries, dbSummaries[i].toSummary())
	}
	return summaries, nil
}

// ListBySkill returns run summaries for one skill, newest first.
func (s *Store) ListBySkill(ctx context.Context, skillID string) ([]Summary, error) {
	var dbSummaries []dbRunSummary

	query := `SELECT id, skill_id, provider, model, prompt,
		message_count, usage, created_at, updated_at
		FROM runs WHERE skill_id = ? ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &dbSummaries, query, skillID); err != nil {
		return nil, errors.Wrap(err, "failed to query run summaries")
	}

	summaries := make([]Summary, 0, len(dbSummaries))
	for i := range dbSummaries {
		summaries = append(summaries, dbSummaries[i].toSummary())
	}
	return summaries, nil
}

// Delete removes a run record.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete run record")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if affected == 0 {
		return errors.Errorf("run not found: %s", id)
	}

	return nil
}
