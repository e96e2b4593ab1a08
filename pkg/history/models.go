package history

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/llm"
)

// Run is a recorded agent run: the transcript plus enough context to
// replay what happened and what it cost.
type Run struct {
	ID        string        `json:"id"`
	SkillID   string        `json:"skill_id,omitempty"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt"`
	Messages  []llm.Message `json:"messages"`
	Usage     llm.Usage     `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Summary is the listing projection of a run: everything except the
// transcript itself.
type Summary struct {
	ID           string    `json:"id"`
	SkillID      string    `json:"skill_id,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Prompt       string    `json:"prompt"`
	MessageCount int       `json:"message_count"`
	Usage        llm.Usage `json:"usage"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToSummary derives the listing projection from a full run.
func (r Run) ToSummary() Summary {
	return Summary{
		ID:           r.ID,
		SkillID:      r.SkillID,
		Provider:     r.Provider,
		Model:        r.Model,
		Prompt:       r.Prompt,
		MessageCount: len(r.Messages),
		Usage:        r.Usage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// JSONField is a generic type for handling JSON marshaling/unmarshaling in database
type JSONField[T any] struct {
	Data T
}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONField[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		bytes = []byte(str)
	}

	return json.Unmarshal(bytes, &j.Data)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONField[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

// dbRun represents the runs table structure
type dbRun struct {
	ID           string                   `db:"id"`
	SkillID      string                   `db:"skill_id"`
	Provider     string                   `db:"provider"`
	Model        string                   `db:"model"`
	Prompt       string                   `db:"prompt"`
	MessageCount int                      `db:"message_count"`
	Messages     JSONField[[]llm.Message] `db:"messages"`
	Usage        JSONField[llm.Usage]     `db:"usage"`
	CreatedAt    time.Time                `db:"created_at"`
	UpdatedAt    time.Time                `db:"updated_at"`
}

// dbRunSummary represents the listing projection of the runs table
type dbRunSummary struct {
	ID           string               `db:"id"`
	SkillID      string               `db:"skill_id"`
	Provider     string               `db:"provider"`
	Model        string               `db:"model"`
	Prompt       string               `db:"prompt"`
	MessageCount int                  `db:"message_count"`
	Usage        JSONField[llm.Usage] `db:"usage"`
	CreatedAt    time.Time            `db:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at"`
}

func (dbr *dbRun) toRun() Run {
	return Run{
		ID:        dbr.ID,
		SkillID:   dbr.SkillID,
		Provider:  dbr.Provider,
		Model:     dbr.Model,
		Prompt:    dbr.Prompt,
		Messages:  dbr.Messages.Data,
		Usage:     dbr.Usage.Data,
		CreatedAt: dbr.CreatedAt,
		UpdatedAt: dbr.UpdatedAt,
	}
}

func (dbs *dbRunSummary) toSummary() Summary {
	return Summary{
		ID:           dbs.ID,
		SkillID:      dbs.SkillID,
		Provider:     dbs.Provider,
		Model:        dbs.Model,
		Prompt:       dbs.Prompt,
		MessageCount: dbs.MessageCount,
		Usage:        dbs.Usage.Data,
		CreatedAt:    dbs.CreatedAt,
		UpdatedAt:    dbs.UpdatedAt,
	}
}

func fromRun(run Run) *dbRun {
	return &dbRun{
		ID:           run.ID,
		SkillID:      run.SkillID,
		Provider:     run.Provider,
		Model:        run.Model,
		Prompt:       run.Prompt,
		MessageCount: len(run.Messages),
		Messages:     JSONField[[]llm.Message]{Data: run.Messages},
		Usage:        JSONField[llm.Usage]{Data: run.Usage},
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}
