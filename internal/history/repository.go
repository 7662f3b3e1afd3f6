package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two event types.
type Kind string

const (
	KindCommand Kind = "command"
	KindState   Kind = "state"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Event is one row of the door trail. Command is empty for state events.
type Event struct {
	ID        string    `json:"id"`
	DoorID    string    `json:"door_id"`
	Kind      Kind      `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Status    string    `json:"status"`
	Setpoint  string    `json:"setpoint"`
	Position  float64   `json:"position"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	DoorID string // optional
	Kind   Kind   // optional: command or state
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains one page of events.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository defines the interface for door event storage.
type Repository interface {
	Record(ctx context.Context, e *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores events in the door_events table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts an event. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Event) error {
	if e.DoorID == "" {
		return fmt.Errorf("%w: door id is required", ErrInvalidEvent)
	}
	if e.Kind != KindCommand && e.Kind != KindState {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Kind == KindCommand && e.Command == "" {
		return fmt.Errorf("%w: command event without a command", ErrInvalidEvent)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_events (id, door_id, kind, command, status, setpoint, position, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DoorID, string(e.Kind),
		nullableString(e.Command),
		e.Status, e.Setpoint, e.Position,
		nullableString(e.Source),
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting door event: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const selectColumns = "SELECT id, door_id, kind, command, status, setpoint, position, source, created_at FROM door_events"

// Get returns a single event by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns events matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM door_events"+where, args...).Scan(&total); err != nil { //nolint:gosec // WHERE built from parameterised conditions
		return nil, fmt.Errorf("counting door events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, //nolint:gosec // WHERE built from parameterised conditions
		selectColumns+where+" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying door events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating door events: %w", err)
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*Event, error) {
	var e Event
	var kind, createdAt string
	var command, source sql.NullString

	if err := s.Scan(&e.ID, &e.DoorID, &kind, &command, &e.Status, &e.Setpoint, &e.Position, &source, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning door event: %w", err)
	}
	e.Kind = Kind(kind)
	e.Command = command.String
	e.Source = source.String

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing door event timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return &e, nil
}
