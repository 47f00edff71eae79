package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
)

// Repository persists events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string, r Range) ([]Event, error)
}

// SQLRepository stores events in SQLite or Postgres.
type SQLRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLRepository creates an event repository. now may be nil.
func NewSQLRepository(db *database.DB, now func() time.Time) *SQLRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLRepository{db: db, now: now}
}

const eventColumns = "id, tenant_id, title, description, location, starts_at, ends_at, created_by, created_at, updated_at"

// Create inserts an event, assigning its ID and timestamps.
func (r *SQLRepository) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}
	now := r.now().UTC().Truncate(time.Second)
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.Title, e.Description, e.Location,
		formatTime(e.StartsAt), formatTime(e.EndsAt), e.CreatedBy,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", e.ID, err)
	}
	return nil
}

// Get returns an event by ID.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// Update writes the mutable fields of e. The tenant and creator never change.
func (r *SQLRepository) Update(ctx context.Context, e *Event) error {
	e.UpdatedAt = r.now().UTC().Truncate(time.Second)
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET title = ?, description = ?, location = ?, starts_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, e.Description, e.Location, formatTime(e.StartsAt), formatTime(e.EndsAt),
		formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", e.ID, err)
	}
	return requireRow(result, ErrEventNotFound)
}

// Delete removes an event.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return requireRow(result, ErrEventNotFound)
}

// ListByTenant returns a church's events overlapping rng, earliest first.
func (r *SQLRepository) ListByTenant(ctx context.Context, tenantID string, rng Range) ([]Event, error) {
	var (
		where = []string{"tenant_id = ?"}
		args  = []any{tenantID}
	)
	if !rng.From.IsZero() {
		where = append(where, "ends_at > ?")
		args = append(args, formatTime(rng.From))
	}
	if !rng.To.IsZero() {
		where = append(where, "starts_at < ?")
		args = append(args, formatTime(rng.To))
	}

	query := "SELECT " + eventColumns + " FROM events WHERE " + strings.Join(where, " AND ") +
		" ORDER BY starts_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
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
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*Event, error) {
	var (
		e                                      Event
		startsAt, endsAt, createdAt, updatedAt string
	)
	err := sc.Scan(&e.ID, &e.TenantID, &e.Title, &e.Description, &e.Location,
		&startsAt, &endsAt, &e.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	e.StartsAt = parseTime(startsAt)
	e.EndsAt = parseTime(endsAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Event times are stored as RFC 3339 UTC so that text comparison orders
// them correctly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // written by formatTime
	return t
}
