package allowlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Repository resolves roster entries by identity. Injected so the roster can
// live in a file, a database or a remote service without touching the gate.
type Repository interface {
	LookupByIdentity(ctx context.Context, firstName, lastName, email string) (Entry, error)
}

// PostgresRepository implements Repository against an allowlist table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed roster repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LookupByIdentity fetches the active roster entry matching the identity
// tuple, case-insensitively.
func (r *PostgresRepository) LookupByIdentity(ctx context.Context, firstName, lastName, email string) (Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT first_name, last_name, email, role, created_at, is_active
        FROM allowlist_entries
        WHERE lower(first_name) = $1 AND lower(last_name) = $2 AND lower(email) = $3`,
		strings.ToLower(firstName), strings.ToLower(lastName), strings.ToLower(email))

	var (
		entry     Entry
		createdAt time.Time
	)
	if err := row.Scan(&entry.FirstName, &entry.LastName, &entry.Email, &entry.Role, &createdAt, &entry.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("roster entry: %w", secerr.ErrNotFound)
		}
		return Entry{}, fmt.Errorf("roster lookup: %w", secerr.ErrStorage)
	}
	entry.CreatedAt = createdAt.UTC()
	return entry, nil
}
