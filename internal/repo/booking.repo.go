package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
)

type BookingFilter struct {
	UserID *uuid.UUID
	Status domain.BookingStatus
	Limit  int
	Offset int
}

type BookingRepo interface {
	// Create inserts the booking and claims its slots. A slot already held by
	// another active booking yields domain.ErrSlotTaken.
	Create(ctx context.Context, tx DBTX, booking *domain.Booking) error
	FindByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status domain.BookingStatus) error
	// ConfirmIfActive confirms a pending/confirmed booking; false when it was cancelled meanwhile.
	ConfirmIfActive(ctx context.Context, tx DBTX, id uuid.UUID) (bool, error)
	ReleaseSlots(ctx context.Context, tx DBTX, bookingID uuid.UUID) error
	TakenSlots(ctx context.Context, courtID uuid.UUID, date time.Time) ([]int, error)
}

type bookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) BookingRepo {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) Create(ctx context.Context, tx DBTX, b *domain.Booking) error {
	q := pick(r.db, tx)
	_, err := q.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, court_id, date, total_hours, total_price, status, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.CourtID, b.Date, b.TotalHours, b.TotalPrice, b.Status, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	for _, slotID := range b.SlotIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO booking_slots (booking_id, court_id, date, slot_id) VALUES ($1, $2, $3, $4)`,
			b.ID, b.CourtID, b.Date, slotID,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("slot %d: %w", slotID, domain.ErrSlotTaken)
		}
		if err != nil {
			return fmt.Errorf("claim slot %d: %w", slotID, err)
		}
	}
	return nil
}

const bookingSelect = `
	SELECT b.id, b.user_id, b.court_id, c.name, b.date, b.total_hours, b.total_price, b.status, b.notes, b.created_at, b.updated_at
	FROM bookings b
	JOIN courts c ON c.id = b.court_id`

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.CourtID,
		&b.CourtName,
		&b.Date,
		&b.TotalHours,
		&b.TotalPrice,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepo) FindByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Booking, error) {
	q := pick(r.db, tx)
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find booking %s: %w", id, err)
	}
	if b.SlotIDs, err = r.slotIDs(ctx, q, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookingRepo) slotIDs(ctx context.Context, q DBTX, bookingID uuid.UUID) ([]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT slot_id FROM booking_slots WHERE booking_id = $1 ORDER BY slot_id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("booking slots: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *bookingRepo) List(ctx context.Context, f BookingFilter) ([]domain.Booking, error) {
	query := bookingSelect + ` WHERE ($1::uuid IS NULL OR b.user_id = $1) AND ($2 = '' OR b.status = $2)
		ORDER BY b.created_at DESC LIMIT $3 OFFSET $4`

	var userID uuid.NullUUID
	if f.UserID != nil {
		userID = uuid.NullUUID{UUID: *f.UserID, Valid: true}
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	rows, err := r.db.QueryContext(ctx, query, userID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status domain.BookingStatus) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *bookingRepo) ConfirmIfActive(ctx context.Context, tx DBTX, id uuid.UUID) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = now() WHERE id = $2 AND status IN ($3, $4)`,
		domain.BookingConfirmed, id, domain.BookingPending, domain.BookingConfirmed,
	)
	if err != nil {
		return false, fmt.Errorf("confirm booking: %w", err)
	}
	return affected(res)
}

func (r *bookingRepo) ReleaseSlots(ctx context.Context, tx DBTX, bookingID uuid.UUID) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE booking_slots SET active = FALSE WHERE booking_id = $1 AND active`, bookingID)
	if err != nil {
		return fmt.Errorf("release booking slots: %w", err)
	}
	return nil
}

func (r *bookingRepo) TakenSlots(ctx context.Context, courtID uuid.UUID, date time.Time) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slot_id FROM booking_slots WHERE court_id = $1 AND date = $2 AND active ORDER BY slot_id`,
		courtID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("taken slots: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
