package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
)

type CourtRepo interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Court, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Court, error)
	Create(ctx context.Context, court *domain.Court) error
	TimeSlots(ctx context.Context) ([]domain.TimeSlot, error)
}

type courtRepo struct {
	db *sql.DB
}

func NewCourtRepo(db *sql.DB) CourtRepo {
	return &courtRepo{db: db}
}

func scanCourt(row rowScanner) (*domain.Court, error) {
	var c domain.Court
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.PricePerHour, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *courtRepo) List(ctx context.Context, activeOnly bool) ([]domain.Court, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price_per_hour, is_active, created_at, updated_at
		FROM courts
		WHERE NOT $1 OR is_active
		ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	defer rows.Close()

	var courts []domain.Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		courts = append(courts, *c)
	}
	return courts, rows.Err()
}

func (r *courtRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Court, error) {
	c, err := scanCourt(r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_per_hour, is_active, created_at, updated_at
		FROM courts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCourtNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find court %s: %w", id, err)
	}
	return c, nil
}

func (r *courtRepo) Create(ctx context.Context, c *domain.Court) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courts (id, name, description, price_per_hour, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Description, c.PricePerHour, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert court: %w", err)
	}
	return nil
}

func (r *courtRepo) TimeSlots(ctx context.Context) ([]domain.TimeSlot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, start_time FROM time_slots ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.TimeSlot
	for rows.Next() {
		var s domain.TimeSlot
		if err := rows.Scan(&s.ID, &s.Start); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
