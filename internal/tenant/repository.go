package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
)

// Repository persists churches.
type Repository interface {
	Create(ctx context.Context, c *Church) error
	// CreateWithOwner inserts c and attaches ownerID to it as an admin in
	// one transaction. The owner must not already belong to a church.
	CreateWithOwner(ctx context.Context, c *Church, ownerID string) error
	Get(ctx context.Context, id string) (*Church, error)
	List(ctx context.Context) ([]Church, error)
}

// SQLRepository stores churches in SQLite or Postgres.
type SQLRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLRepository creates a church repository. now may be nil.
func NewSQLRepository(db *database.DB, now func() time.Time) *SQLRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLRepository{db: db, now: now}
}

const insertChurch = `INSERT INTO churches (id, name, timezone, created_by, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// prepare assigns the ID and timestamps of a new church.
func (r *SQLRepository) prepare(c *Church) {
	if c.ID == "" {
		c.ID = "ch-" + uuid.NewString()[:8]
	}
	now := r.now().UTC().Truncate(time.Second)
	c.CreatedAt = now
	c.UpdatedAt = now
}

func churchArgs(c *Church) []any {
	return []any{c.ID, c.Name, c.Timezone, nullString(c.CreatedBy),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339)}
}

// Create inserts a church with no owner.
func (r *SQLRepository) Create(ctx context.Context, c *Church) error {
	r.prepare(c)
	if _, err := r.db.ExecContext(ctx, insertChurch, churchArgs(c)...); err != nil {
		return fmt.Errorf("inserting church %s: %w", c.ID, err)
	}
	return nil
}

// CreateWithOwner inserts c and makes ownerID its admin. It returns
// auth.ErrAccountNotFound for an unknown owner and auth.ErrAlreadyInTenant
// when the owner is already attached to a church.
func (r *SQLRepository) CreateWithOwner(ctx context.Context, c *Church, ownerID string) error {
	d := r.db.Dialect()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning church transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		d.Rebind("SELECT tenant_id FROM accounts WHERE id = ?"+d.ForUpdate()), ownerID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrAccountNotFound
		}
		return fmt.Errorf("reading owner: %w", err)
	}
	if current.Valid && current.String != "" {
		return auth.ErrAlreadyInTenant
	}

	c.CreatedBy = ownerID
	r.prepare(c)
	if _, err := tx.ExecContext(ctx, d.Rebind(insertChurch), churchArgs(c)...); err != nil {
		return fmt.Errorf("inserting church %s: %w", c.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		d.Rebind(`UPDATE accounts SET tenant_id = ?, role = ?, updated_at = ? WHERE id = ?`),
		c.ID, string(auth.RoleAdmin), c.UpdatedAt.Format(time.RFC3339), ownerID)
	if err != nil {
		return fmt.Errorf("attaching owner %s: %w", ownerID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing church %s: %w", c.ID, err)
	}
	return nil
}

const churchColumns = "id, name, timezone, created_by, created_at, updated_at"

// Get returns a church by ID.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Church, error) {
	c, err := scanChurch(r.db.QueryRowContext(ctx, "SELECT "+churchColumns+" FROM churches WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChurchNotFound
	}
	return c, err
}

// List returns every church ordered by name.
func (r *SQLRepository) List(ctx context.Context) ([]Church, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+churchColumns+" FROM churches ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing churches: %w", err)
	}
	defer rows.Close()

	churches := []Church{}
	for rows.Next() {
		c, err := scanChurch(rows)
		if err != nil {
			return nil, err
		}
		churches = append(churches, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating churches: %w", err)
	}
	return churches, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChurch(sc scanner) (*Church, error) {
	var (
		c                    Church
		createdBy            sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Timezone, &createdBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning church: %w", err)
	}
	c.CreatedBy = createdBy.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by prepare
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by prepare
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
