package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Admin actions.
const (
	ActionAllowListSet  = "allowlist.set"
	ActionRemoteEnable  = "remote.enable"
	ActionRemoteDisable = "remote.disable"
)

// AdminEvent is one administrative change to the bridge.
type AdminEvent struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AdminRepository stores admin events.
type AdminRepository interface {
	Create(ctx context.Context, ev *AdminEvent) error
	Recent(ctx context.Context, limit int) ([]AdminEvent, error)
}

// SQLiteAdminRepository stores admin events in the admin_events table.
type SQLiteAdminRepository struct {
	db *sql.DB
}

// NewSQLiteAdminRepository creates an admin event repository.
func NewSQLiteAdminRepository(db *sql.DB) *SQLiteAdminRepository {
	return &SQLiteAdminRepository{db: db}
}

// Create inserts an event. The ID and CreatedAt are generated if empty.
func (r *SQLiteAdminRepository) Create(ctx context.Context, ev *AdminEvent) error {
	if ev.ID == "" {
		ev.ID = "adm-" + uuid.NewString()[:8]
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var details *string
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshalling admin event details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_events (id, action, actor, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Action, nullableString(ev.Actor), ev.Source, details,
		ev.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting admin event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *SQLiteAdminRepository) Recent(ctx context.Context, limit int) ([]AdminEvent, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, actor, source, details, created_at
		   FROM admin_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying admin events: %w", err)
	}
	defer rows.Close()

	events := []AdminEvent{}
	for rows.Next() {
		var ev AdminEvent
		var actor, details sql.NullString
		var created string
		if err := rows.Scan(&ev.ID, &ev.Action, &actor, &ev.Source, &details, &created); err != nil {
			return nil, fmt.Errorf("scanning admin event: %w", err)
		}
		ev.Actor = actor.String
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				ev.Details = m
			}
		}
		if ev.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin events: %w", err)
	}
	return events, nil
}
