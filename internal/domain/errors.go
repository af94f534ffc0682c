package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them to a response.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindSignature    ErrorKind = "signature"
	KindBusinessRule ErrorKind = "business_rule"
	KindTransient    ErrorKind = "transient"
	KindForbidden    ErrorKind = "forbidden"
)

// Error is an application error with a kind and a user facing message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Transient wraps an infrastructure failure (db, network) that the caller may retry.
func Transient(message string, err error) error {
	return NewError(KindTransient, message, err)
}

// KindOf returns the kind of the first *Error in the chain, or KindTransient
// for anything unclassified.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// MessageOf returns the user facing message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Payment errors
var (
	ErrMissingReference  = NewError(KindValidation, "missing transaction reference", nil)
	ErrInvalidAmount     = NewError(KindValidation, "amount must be greater than zero", nil)
	ErrPaymentNotFound   = NewError(KindNotFound, "payment not found", nil)
	ErrInvalidSignature  = NewError(KindSignature, "invalid signature", nil)
	ErrMissingSignature  = NewError(KindSignature, "missing signature", nil)
	ErrAmountMismatch    = NewError(KindBusinessRule, "amount mismatch", nil)
	ErrAlreadyProcessed  = NewError(KindBusinessRule, "payment already processed", nil)
	ErrInvalidTransition = NewError(KindBusinessRule, "invalid payment state for this action", nil)
	ErrPaymentExpired    = NewError(KindBusinessRule, "payment request expired", nil)
	ErrAlreadyPaid       = NewError(KindBusinessRule, "booking already paid", nil)
	ErrPaymentInProgress = NewError(KindBusinessRule, "another payment for this booking is in progress", nil)
	ErrNothingToRetry    = NewError(KindBusinessRule, "payment has no booking to retry", nil)
	ErrProofTooLarge     = NewError(KindValidation, "payment proof file is too large", nil)
	ErrProofType         = NewError(KindValidation, "payment proof must be a JPEG, PNG, WebP image or a PDF", nil)
	ErrNotProofPayment   = NewError(KindBusinessRule, "only transfer proofs are reviewed by staff", nil)
)

// Booking and catalog errors
var (
	ErrCourtNotFound        = NewError(KindNotFound, "court not found", nil)
	ErrBookingNotFound      = NewError(KindNotFound, "booking not found", nil)
	ErrServiceNotFound      = NewError(KindNotFound, "service not found", nil)
	ErrOrderNotFound        = NewError(KindNotFound, "service order not found", nil)
	ErrOrderItemNotFound    = NewError(KindNotFound, "order item not found", nil)
	ErrUserNotFound         = NewError(KindNotFound, "user not found", nil)
	ErrCourtInactive        = NewError(KindBusinessRule, "court is not active", nil)
	ErrSlotTaken            = NewError(KindBusinessRule, "time slot already booked", nil)
	ErrNoSlots              = NewError(KindValidation, "at least one time slot is required", nil)
	ErrUnknownSlot          = NewError(KindValidation, "unknown time slot", nil)
	ErrDateInPast           = NewError(KindValidation, "booking date is in the past", nil)
	ErrBookingNotCancelable = NewError(KindBusinessRule, "booking can no longer be cancelled", nil)
	ErrInvalidStatus        = NewError(KindValidation, "invalid status", nil)
	ErrInvalidRole          = NewError(KindValidation, "invalid role", nil)
	ErrInvalidQuantity      = NewError(KindValidation, "quantity must be at least 1", nil)
	ErrServiceUnavailable   = NewError(KindBusinessRule, "service is not available", nil)
	ErrInsufficientStock    = NewError(KindBusinessRule, "insufficient stock", nil)
	ErrOrderClosed          = NewError(KindBusinessRule, "service order can no longer be modified", nil)
	ErrForbidden            = NewError(KindForbidden, "forbidden", nil)
)
