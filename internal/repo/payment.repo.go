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

// GatewayResult is what the reconciler records on a payment from a verified callback.
type GatewayResult struct {
	ResponseCode  string
	TransactionNo string
	BankCode      string
	CardType      string
	PayDate       string
	SecureHash    string
}

// RedirectInfo is persisted when the signed redirect is built.
type RedirectInfo struct {
	TxnRef    string
	OrderInfo string
	IPAddress string
	UserAgent string
	ExpiredAt time.Time
}

type PaymentRepo interface {
	Create(ctx context.Context, tx DBTX, payment *domain.Payment) error
	FindByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Payment, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error)
	HasCompletedForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	// HasInFlightForBooking reports a processing payment whose gateway request has not expired.
	HasInFlightForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (bool, error)
	// MarkRedirected moves pending -> processing and stores the gateway request data.
	MarkRedirected(ctx context.Context, tx DBTX, id uuid.UUID, info RedirectInfo) error
	// CompleteIfOpen and FailIfOpen are compare-and-swap on status: they only
	// touch pending/processing rows and report false when another caller won.
	// CompleteIfOpen returns domain.ErrAlreadyPaid when the booking already has
	// a completed payment.
	CompleteIfOpen(ctx context.Context, tx DBTX, id uuid.UUID, res GatewayResult, paidAt time.Time) (bool, error)
	FailIfOpen(ctx context.Context, tx DBTX, id uuid.UUID, res GatewayResult, reason string) (bool, error)
	CancelIfPending(ctx context.Context, tx DBTX, id uuid.UUID) (bool, error)
	CancelPendingByBooking(ctx context.Context, tx DBTX, bookingID uuid.UUID) ([]uuid.UUID, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, user_id, booking_id, amount, currency, payment_method, status,
	vnpay_txn_ref, vnpay_order_info, vnpay_response_code, vnpay_transaction_no,
	vnpay_bank_code, vnpay_card_type, vnpay_pay_date, vnpay_secure_hash,
	description, ip_address, user_agent, created_at, updated_at, paid_at, expired_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.BookingID,
		&p.Amount,
		&p.Currency,
		&p.Method,
		&p.Status,
		&p.TxnRef,
		&p.OrderInfo,
		&p.ResponseCode,
		&p.TransactionNo,
		&p.BankCode,
		&p.CardType,
		&p.PayDate,
		&p.SecureHash,
		&p.Description,
		&p.IPAddress,
		&p.UserAgent,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.PaidAt,
		&p.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx DBTX, p *domain.Payment) error {
	query := `INSERT INTO payments (id, user_id, booking_id, amount, currency, payment_method, status, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := pick(r.db, tx).ExecContext(
		ctx, query, p.ID, p.UserID, p.BookingID, p.Amount, p.Currency, p.Method, p.Status, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Payment, error) {
	row := pick(r.db, tx).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	return p, nil
}

func (r *paymentRepo) FindByTxnRef(ctx context.Context, txnRef string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE vnpay_txn_ref = $1`, txnRef)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by txn ref %s: %w", txnRef, err)
	}
	return p, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) HasCompletedForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1 AND status = $2)`,
		bookingID, domain.PaymentCompleted,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed payment: %w", err)
	}
	return exists, nil
}

func (r *paymentRepo) HasInFlightForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE booking_id = $1 AND status = $2 AND (expired_at IS NULL OR expired_at > $3)
		)`,
		bookingID, domain.PaymentProcessing, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check in-flight payment: %w", err)
	}
	return exists, nil
}

func (r *paymentRepo) MarkRedirected(ctx context.Context, tx DBTX, id uuid.UUID, info RedirectInfo) error {
	query := `
		UPDATE payments
		SET status = $2,
		    vnpay_txn_ref = $3,
		    vnpay_order_info = $4,
		    ip_address = $5,
		    user_agent = $6,
		    expired_at = COALESCE($7, expired_at),
		    updated_at = now()
		WHERE id = $1 AND status = $8
	`
	res, err := pick(r.db, tx).ExecContext(
		ctx,
		query,
		id,
		domain.PaymentProcessing,
		info.TxnRef,
		info.OrderInfo,
		info.IPAddress,
		info.UserAgent,
		info.ExpiredAt,
		domain.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("mark payment redirected: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *paymentRepo) CompleteIfOpen(ctx context.Context, tx DBTX, id uuid.UUID, g GatewayResult, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    paid_at = $3,
		    vnpay_response_code = $4,
		    vnpay_transaction_no = $5,
		    vnpay_bank_code = $6,
		    vnpay_card_type = $7,
		    vnpay_pay_date = $8,
		    vnpay_secure_hash = $9,
		    updated_at = now()
		WHERE id = $1 AND status IN ($10, $11)
	`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		id, domain.PaymentCompleted, paidAt,
		g.ResponseCode, g.TransactionNo, g.BankCode, g.CardType, g.PayDate, g.SecureHash,
		domain.PaymentPending, domain.PaymentProcessing,
	)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("complete payment: %w", domain.ErrAlreadyPaid)
	}
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	return affected(res)
}

func (r *paymentRepo) FailIfOpen(ctx context.Context, tx DBTX, id uuid.UUID, g GatewayResult, reason string) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    vnpay_response_code = $3,
		    vnpay_transaction_no = $4,
		    vnpay_bank_code = $5,
		    vnpay_card_type = $6,
		    vnpay_pay_date = $7,
		    vnpay_secure_hash = $8,
		    description = CASE WHEN description = '' THEN $9 ELSE description || E'\n' || $9 END,
		    updated_at = now()
		WHERE id = $1 AND status IN ($10, $11)
	`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		id, domain.PaymentFailed,
		g.ResponseCode, g.TransactionNo, g.BankCode, g.CardType, g.PayDate, g.SecureHash,
		"Lỗi: "+reason,
		domain.PaymentPending, domain.PaymentProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("fail payment: %w", err)
	}
	return affected(res)
}

func (r *paymentRepo) CancelIfPending(ctx context.Context, tx DBTX, id uuid.UUID) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, domain.PaymentCancelled, domain.PaymentPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel payment: %w", err)
	}
	return affected(res)
}

func (r *paymentRepo) CancelPendingByBooking(ctx context.Context, tx DBTX, bookingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := pick(r.db, tx).QueryContext(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE booking_id = $1 AND status = $3 RETURNING id`,
		bookingID, domain.PaymentCancelled, domain.PaymentPending,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel booking payments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
