package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/interval"
	"github.com/slotwise/slotwise/internal/outbox"
	"github.com/slotwise/slotwise/libs/db"
)

// BookingRepository persists bookings. The no-overlap invariant lives in the
// database: bookings carries
//
//	EXCLUDE USING gist (owner_id WITH =, tstzrange(start_at, end_at) WITH &&)
//	WHERE (status = 'confirmed')
//
// so concurrent overlapping inserts across any number of service instances
// serialize at write time; the loser surfaces as booking.ErrOverlap. The
// tstzrange is half-open by default, which is what makes exact boundary
// touches legal.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

const bookingColumns = `
	id::text, owner_id, event_type_id, start_at, end_at, status,
	cancelled_at, COALESCE(cancel_reason, ''), created_at`

func (r *BookingRepository) Create(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, owner_id, event_type_id, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, b.ID, b.OwnerID, b.EventTypeID, b.StartAt, b.EndAt, string(b.Status)).Scan(&b.CreatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return booking.Booking{}, booking.ErrOverlap
		}
		return booking.Booking{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":    b.ID,
		"owner_id":      b.OwnerID,
		"event_type_id": b.EventTypeID,
		"start_at":      b.StartAt.UTC().Format(time.RFC3339),
		"end_at":        b.EndAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return booking.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "scheduling.booking.confirmed.v1",
		Payload:       payload,
	}); err != nil {
		return booking.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return booking.Booking{}, booking.ErrOverlap
		}
		return booking.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Get(ctx context.Context, ownerID, bookingID string) (booking.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND owner_id = $2
	`, bookingID, ownerID)
	return scanBooking(row)
}

// Cancel flips a booking to cancelled under a row lock so it serializes with
// concurrent creates for the same owner. Re-cancelling is a no-op success.
func (r *BookingRepository) Cancel(ctx context.Context, ownerID, bookingID, reason string) (booking.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, bookingID, ownerID)
	b, err := scanBooking(row)
	if err != nil {
		return booking.Booking{}, err
	}

	if b.Status == booking.StatusCancelled {
		return b, nil
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING cancelled_at
	`, bookingID, ownerID, reason).Scan(&cancelledAt)
	if err != nil {
		return booking.Booking{}, err
	}
	b.Status = booking.StatusCancelled
	b.CancelledAt = &cancelledAt
	b.CancelReason = reason

	payload, err := json.Marshal(map[string]any{
		"booking_id":   b.ID,
		"owner_id":     b.OwnerID,
		"start_at":     b.StartAt.UTC().Format(time.RFC3339),
		"end_at":       b.EndAt.UTC().Format(time.RFC3339),
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
		"reason":       reason,
	})
	if err != nil {
		return booking.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "scheduling.booking.cancelled.v1",
		Payload:       payload,
	}); err != nil {
		return booking.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}

// ListConfirmed returns confirmed bookings overlapping the span, ordered by
// start. Cancelled bookings never block availability.
func (r *BookingRepository) ListConfirmed(ctx context.Context, ownerID string, span interval.Interval) ([]booking.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE owner_id = $1
			AND status = 'confirmed'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, ownerID, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListByOwner returns the owner's most recent bookings including cancelled
// ones, which are retained for audit.
func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]booking.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE owner_id = $1
		ORDER BY start_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (booking.Booking, error) {
	var b booking.Booking
	var status string
	var cancelledAt *time.Time
	err := row.Scan(&b.ID, &b.OwnerID, &b.EventTypeID, &b.StartAt, &b.EndAt,
		&status, &cancelledAt, &b.CancelReason, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, err
	}
	b.Status = booking.Status(status)
	b.CancelledAt = cancelledAt
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]booking.Booking, error) {
	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
