package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
)

type PaymentLogRepo interface {
	// Append inserts one audit entry. Entries are never updated or deleted.
	Append(ctx context.Context, tx DBTX, entry *domain.PaymentLog) error
	// ListByPayment returns entries newest first.
	ListByPayment(ctx context.Context, paymentID uuid.UUID, limit int) ([]domain.PaymentLog, error)
}

type paymentLogRepo struct {
	db *sql.DB
}

func NewPaymentLogRepo(db *sql.DB) PaymentLogRepo {
	return &paymentLogRepo{db: db}
}

func (r *paymentLogRepo) Append(ctx context.Context, tx DBTX, entry *domain.PaymentLog) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode payment log data: %w", err)
	}
	_, err = pick(r.db, tx).ExecContext(ctx,
		`INSERT INTO payment_logs (id, payment_id, action, message, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.PaymentID, entry.Action, entry.Message, string(data), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment log: %w", err)
	}
	return nil
}

func (r *paymentLogRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID, limit int) ([]domain.PaymentLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, action, message, data, created_at
		FROM payment_logs
		WHERE payment_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, paymentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.PaymentLog
	for rows.Next() {
		var (
			l   domain.PaymentLog
			raw []byte
		)
		if err := rows.Scan(&l.ID, &l.PaymentID, &l.Action, &l.Message, &raw, &l.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &l.Data); err != nil {
				return nil, fmt.Errorf("decode payment log data: %w", err)
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
