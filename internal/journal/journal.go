// Package journal records every task the mutation pump runs, and the
// administrative changes made to the bridge, in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/cadbridge/internal/bridge"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Entry is one journaled task.
type Entry struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Succeeded  bool      `json:"succeeded"`
	Message    string    `json:"message,omitempty"`
	Abandoned  bool      `json:"abandoned"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationUS int64     `json:"duration_us"`
}

// EntryFromRecord converts a pump record.
func EntryFromRecord(rec bridge.Record) Entry {
	return Entry{
		ID:         rec.TaskID,
		Method:     rec.Method,
		Succeeded:  rec.Succeeded,
		Message:    rec.Message,
		Abandoned:  rec.Abandoned,
		EnqueuedAt: rec.EnqueuedAt.UTC(),
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		DurationUS: rec.Duration().Microseconds(),
	}
}

// Filter controls which entries List returns.
type Filter struct {
	Method     string // optional: only this method
	FailedOnly bool   // optional: only failed tasks
	Limit      int    // default 50, max 500
	Offset     int    // pagination offset
}

func (f *Filter) clamp() {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains a page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores journal entries.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the task_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an entry.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_journal
		   (id, method, succeeded, message, abandoned, enqueued_at, started_at, finished_at, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Method, boolInt(e.Succeeded), nullableString(e.Message), boolInt(e.Abandoned),
		e.EnqueuedAt.UTC().Format(timeLayout),
		e.StartedAt.UTC().Format(timeLayout),
		e.FinishedAt.UTC().Format(timeLayout),
		e.DurationUS,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.clamp()

	var conditions []string
	var args []any
	if filter.Method != "" {
		conditions = append(conditions, "method = ?")
		args = append(args, filter.Method)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "succeeded = 0")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM task_journal " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := `SELECT id, method, succeeded, message, abandoned, enqueued_at, started_at, finished_at, duration_us
		FROM task_journal ` + where + ` ORDER BY finished_at DESC LIMIT ? OFFSET ?` //nolint:gosec // as above
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var succeeded, abandoned int
		var message sql.NullString
		var enqueued, started, finished string
		if err := rows.Scan(&e.ID, &e.Method, &succeeded, &message, &abandoned,
			&enqueued, &started, &finished, &e.DurationUS); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Succeeded = succeeded == 1
		e.Abandoned = abandoned == 1
		e.Message = message.String
		if e.EnqueuedAt, err = parseTime(enqueued); err != nil {
			return nil, err
		}
		if e.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if e.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
