package viewings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs, kept narrow so
// tests can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists viewing appointments and the generic slot catalogue.
type Repository struct {
	pool PgxPool
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("viewings: pgx pool required")
	}
	return &Repository{pool: pool}
}

const activeStatuses = `('pending_owner_approval', 'confirmed')`

// IsRangeBooked reports whether any active appointment for the property on
// the given date overlaps the half-open [start, end) range.
func (r *Repository) IsRangeBooked(ctx context.Context, propertyID uuid.UUID, date time.Time, startTime, endTime string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM viewing_appointments
			WHERE property_id = $1
			  AND date = $2
			  AND status IN ` + activeStatuses + `
			  AND start_time < $4
			  AND end_time > $3
		)
	`
	var booked bool
	err := r.pool.QueryRow(ctx, query, propertyID, dateOnly(date), startTime, endTime).Scan(&booked)
	if err != nil {
		return false, fmt.Errorf("viewings: overlap check: %w", err)
	}
	return booked, nil
}

// Insert creates a new appointment row. The exclusion constraint on
// viewing_appointments is the final arbiter against concurrent
// double-booking; a violation surfaces as ErrSlotTaken.
func (r *Repository) Insert(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return errors.New("viewings: appointment required")
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusPendingOwnerApproval
	}

	booked, err := r.IsRangeBooked(ctx, appt.PropertyID, appt.Date, appt.StartTime, appt.EndTime)
	if err != nil {
		return err
	}
	if booked {
		return ErrSlotTaken
	}

	query := `
		INSERT INTO viewing_appointments (id, property_id, user_id, date, start_time, end_time, time_slot_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		appt.ID, appt.PropertyID, appt.UserID, dateOnly(appt.Date),
		appt.StartTime, appt.EndTime, appt.TimeSlotID, string(appt.Status),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// 23P01 = exclusion violation, 23505 = unique violation: either way
			// another webhook won the race for this range.
			if pgErr.Code == "23P01" || pgErr.Code == "23505" {
				return ErrSlotTaken
			}
		}
		return fmt.Errorf("viewings: insert appointment: %w", err)
	}
	return nil
}

var shortIDPattern = regexp.MustCompile(`^[0-9a-f]{4,32}$`)

// FindByShortID resolves a human-typed ID prefix to an appointment. When
// several appointments share the prefix the newest wins, matching how owners
// reference the request they were just notified about.
func (r *Repository) FindByShortID(ctx context.Context, prefix string) (*Appointment, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if !shortIDPattern.MatchString(prefix) {
		return nil, ErrNotFound
	}
	query := `
		SELECT id, property_id, user_id, date, start_time, end_time, time_slot_id, status, created_at, updated_at
		FROM viewing_appointments
		WHERE replace(id::text, '-', '') LIKE $1 || '%'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, prefix)
}

// Get loads an appointment by full ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT id, property_id, user_id, date, start_time, end_time, time_slot_id, status, created_at, updated_at
		FROM viewing_appointments
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*Appointment, error) {
	var a Appointment
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.PropertyID, &a.UserID, &a.Date, &a.StartTime, &a.EndTime,
		&a.TimeSlotID, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("viewings: load appointment: %w", err)
	}
	return &a, nil
}

// UpdateStatusFromPending transitions a pending_owner_approval appointment to
// the given status. Terminal appointments never transition again: the status
// predicate makes repeated or late updates a no-op reported as ErrNotPending.
func (r *Repository) UpdateStatusFromPending(ctx context.Context, id uuid.UUID, to Status) error {
	query := `
		UPDATE viewing_appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending_owner_approval'
	`
	tag, err := r.pool.Exec(ctx, query, id, string(to))
	if err != nil {
		return fmt.Errorf("viewings: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// ListTimeSlots returns the generic fallback slot catalogue in start order.
func (r *Repository) ListTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	query := `SELECT id, label, start_time, end_time FROM viewing_time_slots ORDER BY start_time`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("viewings: list time slots: %w", err)
	}
	defer rows.Close()

	var out []TimeSlot
	for rows.Next() {
		var s TimeSlot
		if err := rows.Scan(&s.ID, &s.Label, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("viewings: scan time slot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("viewings: iterate time slots: %w", err)
	}
	return out, nil
}

// CancelStale cancels pending_owner_approval appointments older than maxAge.
// Buyers whose flow went stale re-request; owners are simply no longer
// prompted about windows nobody is waiting on.
func (r *Repository) CancelStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE viewing_appointments
		SET status = 'cancelled', updated_at = now()
		WHERE status = 'pending_owner_approval'
		  AND created_at < now() - make_interval(secs => $1)
	`
	tag, err := r.pool.Exec(ctx, query, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("viewings: cancel stale: %w", err)
	}
	return tag.RowsAffected(), nil
}
