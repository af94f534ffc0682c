package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// IsTerminal reports whether no further automatic transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodVNPay PaymentMethod = "vnpay"
	// MethodQRCode is a bank transfer to the venue's QR code, settled by staff
	// after reviewing the uploaded proof.
	MethodQRCode PaymentMethod = "qr_code"
)

const CurrencyVND = "VND"

type Payment struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	BookingID uuid.NullUUID
	Amount    decimal.Decimal
	Currency  string
	Method    PaymentMethod
	Status    PaymentStatus

	// gateway fields, empty until the request builder / reconciler fill them
	TxnRef        string
	OrderInfo     string
	ResponseCode  string
	TransactionNo string
	BankCode      string
	CardType      string
	PayDate       string
	SecureHash    string

	Description string
	IPAddress   string
	UserAgent   string

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
	ExpiredAt *time.Time
}

// NewPayment returns a pending gateway payment for the given user.
func NewPayment(userID uuid.UUID, bookingID *uuid.UUID, amount decimal.Decimal, description string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	now := time.Now()
	p := &Payment{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount.Round(2),
		Currency:    CurrencyVND,
		Method:      MethodVNPay,
		Status:      PaymentPending,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if bookingID != nil {
		p.BookingID = uuid.NullUUID{UUID: *bookingID, Valid: true}
	}
	return p, nil
}

// TxnRefFor derives the short gateway reference: first 8 hex chars of the id, upper case.
func TxnRefFor(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// MinorAmount is the amount in the gateway's unit (x100), truncated like the gateway expects.
func (p *Payment) MinorAmount() int64 {
	return p.Amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (p *Payment) IsPaid() bool {
	return p.Status == PaymentCompleted
}

func (p *Payment) IsExpired(now time.Time) bool {
	return p.ExpiredAt != nil && now.After(*p.ExpiredAt)
}

// CanBePaid: pending and not past the advisory expiry.
func (p *Payment) CanBePaid(now time.Time) bool {
	return p.Status == PaymentPending && !p.IsExpired(now)
}

func (p *Payment) CanCancel() bool {
	return p.Status == PaymentPending
}

func (p *Payment) CanRetry() bool {
	return p.Status == PaymentFailed || p.Status == PaymentCancelled
}

func (p *Payment) HasBooking() bool {
	return p.BookingID.Valid
}

type LogAction string

const (
	LogCreated           LogAction = "created"
	LogRedirectToVNPay   LogAction = "redirect_to_vnpay"
	LogPaymentSuccess    LogAction = "payment_success"
	LogPaymentFailed     LogAction = "payment_failed"
	LogIPNReceived       LogAction = "ipn_received"
	LogCancelled         LogAction = "cancelled"
	LogSignatureInvalid  LogAction = "signature_invalid"
	LogAmountMismatch    LogAction = "amount_mismatch"
	LogCallbackDuplicate LogAction = "callback_duplicate"
	LogProofUploaded     LogAction = "proof_uploaded"
)

// PaymentLog is an append-only audit entry. Never updated after insert.
type PaymentLog struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Action    LogAction
	Message   string
	Data      map[string]any
	CreatedAt time.Time
}

func NewPaymentLog(paymentID uuid.UUID, action LogAction, message string, data map[string]any) *PaymentLog {
	if data == nil {
		data = map[string]any{}
	}
	return &PaymentLog{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Action:    action,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now(),
	}
}
