package property

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested property does not exist.
var ErrNotFound = errors.New("property: not found")

// PgxPool is the subset of pgxpool.Pool the repository needs, kept narrow so
// tests can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads property records from Postgres.
type Repository struct {
	pool PgxPool
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("property: pgx pool required")
	}
	return &Repository{pool: pool}
}

// GetWithDetails loads a property including its availability rules.
func (r *Repository) GetWithDetails(ctx context.Context, id uuid.UUID) (*Property, error) {
	query := `
		SELECT id, title, address, city, owner_id, agent_id, availability
		FROM properties
		WHERE id = $1
	`
	var (
		p            Property
		availability []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Address, &p.City, &p.OwnerID, &p.AgentID, &availability,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("property: load %s: %w", id, err)
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &p.Availability); err != nil {
			return nil, fmt.Errorf("property: decode availability for %s: %w", id, err)
		}
	}
	return &p, nil
}

var refPattern = regexp.MustCompile(`^[0-9a-f]{6,32}$`)

// FindByRef resolves a human-typed listing reference, the leading hex of the
// property ID as printed in listing messages, to a property.
func (r *Repository) FindByRef(ctx context.Context, ref string) (*Property, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if !refPattern.MatchString(ref) {
		return nil, ErrNotFound
	}
	query := `
		SELECT id FROM properties
		WHERE replace(id::text, '-', '') LIKE $1 || '%'
		LIMIT 1
	`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, ref).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("property: resolve ref %q: %w", ref, err)
	}
	return r.GetWithDetails(ctx, id)
}
