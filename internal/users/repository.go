package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Role distinguishes the two sides of a viewing negotiation.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleOwner Role = "owner"
	RoleAgent Role = "agent"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

// User is a WhatsApp-reachable participant. Phone is E.164 without the
// channel prefix; it doubles as the conversation key.
type User struct {
	ID    uuid.UUID
	Name  string
	Phone string
	Role  Role
}

// IsOwnerSide reports whether the user answers viewing requests rather than
// initiating them.
func (u *User) IsOwnerSide() bool {
	return u.Role == RoleOwner || u.Role == RoleAgent
}

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads user records from Postgres.
type Repository struct {
	pool PgxPool
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &Repository{pool: pool}
}

// FindByID loads a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(ctx, `SELECT id, name, phone, role FROM users WHERE id = $1`, id)
}

// FindByPhone loads a user by E.164 phone number.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return r.scanOne(ctx, `SELECT id, name, phone, role FROM users WHERE phone = $1`, phone)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Phone, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: load: %w", err)
	}
	return &u, nil
}
