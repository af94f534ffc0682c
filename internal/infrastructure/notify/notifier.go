package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	PaymentSucceeded EventKind = "payment_succeeded"
	PaymentFailed    EventKind = "payment_failed"
)

// Event describes a settled payment. Built by the reconciler after commit.
type Event struct {
	Kind         EventKind       `json:"event_type"`
	PaymentID    uuid.UUID       `json:"payment_id"`
	UserID       uuid.UUID       `json:"user_id"`
	BookingID    *uuid.UUID      `json:"booking_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	TxnRef       string          `json:"txn_ref"`
	CourtName    string          `json:"court_name,omitempty"`
	BookingDate  string          `json:"booking_date,omitempty"`
	ResponseCode string          `json:"response_code,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Source       string          `json:"source"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
