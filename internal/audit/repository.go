// Package audit persists command outcomes and session transitions to SQLite
// and serves them back, newest first.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// Entry is one row of the command audit trail.
type Entry struct {
	ID        string    `json:"id"`
	Command   string    `json:"command,omitempty"`
	Source    string    `json:"source,omitempty"`
	Payload   string    `json:"payload"`
	Topic     string    `json:"topic"`
	Result    string    `json:"result"`
	MessageID uint16    `json:"message_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StateEvent is one recorded session state transition.
type StateEvent struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Command string // optional: exact command name
	Result  string // optional: published or dropped
	Source  string // optional: api, dispatch
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult is a page of audit entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the audit trail operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	RecordState(ctx context.Context, state session.State) error
	ListStates(ctx context.Context, limit int) ([]StateEvent, error)
}

// Logger receives write failures from Record, which cannot return them.
type Logger interface {
	Warn(msg string, args ...any)
}

// SQLiteRepository stores the audit trail in SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	logger Logger
}

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB, logger Logger) *SQLiteRepository {
	return &SQLiteRepository{db: db, logger: logger}
}

func newID(prefix string) string {
	return prefix + uuid.NewString()[:8]
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = newID("cmd-")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var msgID any
	if e.MessageID != 0 {
		msgID = int64(e.MessageID)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, command, source, payload, topic, result, message_id, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullableString(e.Command), nullableString(e.Source),
		e.Payload, e.Topic, e.Result, msgID, nullableString(e.Reason),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// Record implements command.Recorder. Write failures are logged, not returned.
func (r *SQLiteRepository) Record(ctx context.Context, o command.Outcome) {
	if err := r.Create(ctx, entryFrom(o)); err != nil && r.logger != nil {
		r.logger.Warn("audit write failed", "payload", o.Payload, "error", err)
	}
}

func entryFrom(o command.Outcome) *Entry {
	return &Entry{
		Command:   string(o.Command),
		Source:    o.Source,
		Payload:   o.Payload,
		Topic:     o.Topic,
		Result:    string(o.Result),
		MessageID: o.MessageID,
		Reason:    o.Reason,
		CreatedAt: o.At,
	}
}

// RecordState stores a session state transition.
func (r *SQLiteRepository) RecordState(ctx context.Context, state session.State) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (id, state, created_at) VALUES (?, ?, ?)`,
		newID("ses-"), state.String(), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}
	return nil
}

// ListStates returns the most recent session transitions, newest first.
func (r *SQLiteRepository) ListStates(ctx context.Context, limit int) ([]StateEvent, error) {
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, state, created_at FROM session_events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer rows.Close()

	events := []StateEvent{}
	for rows.Next() {
		var ev StateEvent
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.State, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, command, source, payload, topic, result, message_id, reason, created_at FROM command_audit " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var cmd, source, reason sql.NullString
		var msgID sql.NullInt64
		var createdAt string

		if err := rows.Scan(&e.ID, &cmd, &source, &e.Payload, &e.Topic, &e.Result, &msgID, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Command = cmd.String
		e.Source = source.String
		e.Reason = reason.String
		if msgID.Valid {
			e.MessageID = uint16(msgID.Int64) //nolint:gosec // stored from a uint16
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing audit timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
