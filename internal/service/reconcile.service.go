package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/notify"
	"courtmaster/internal/infrastructure/vnpay"
	"courtmaster/internal/repo"

	"go.uber.org/zap"
)

// CallbackSource tells which gateway entry point delivered the payload.
type CallbackSource string

const (
	SourceReturn CallbackSource = "return"
	SourceIPN    CallbackSource = "ipn"
)

type OutcomeKind string

const (
	OutcomeSucceeded        OutcomeKind = "succeeded"
	OutcomeFailed           OutcomeKind = "failed"
	OutcomeAlreadyProcessed OutcomeKind = "already_processed"
)

type Outcome struct {
	Kind    OutcomeKind
	Payment *domain.Payment
	Message string
}

// EventQueue accepts notifications without blocking the caller.
type EventQueue interface {
	Enqueue(ev notify.Event) bool
}

// Reconciler applies gateway callbacks to payments. Both entry points run the
// same procedure and differ only in how the result is reported.
type Reconciler interface {
	Reconcile(ctx context.Context, source CallbackSource, params map[string]string) (*Outcome, error)
	HandleReturn(ctx context.Context, params map[string]string) (*Outcome, error)
	HandleIPN(ctx context.Context, params map[string]string) vnpay.Ack
}

type reconciler struct {
	tx          repo.Transactor
	paymentRepo repo.PaymentRepo
	logRepo     repo.PaymentLogRepo
	bookingRepo repo.BookingRepo
	gateway     vnpay.PaymentGateway
	events      EventQueue
	logger      *zap.Logger
	now         func() time.Time
}

func NewReconciler(
	tx repo.Transactor,
	paymentRepo repo.PaymentRepo,
	logRepo repo.PaymentLogRepo,
	bookingRepo repo.BookingRepo,
	gateway vnpay.PaymentGateway,
	events EventQueue,
	logger *zap.Logger,
) Reconciler {
	return &reconciler{
		tx:          tx,
		paymentRepo: paymentRepo,
		logRepo:     logRepo,
		bookingRepo: bookingRepo,
		gateway:     gateway,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// errLostRace: another delivery moved the payment out of pending/processing first.
var errLostRace = errors.New("payment settled by a concurrent callback")

func (r *reconciler) HandleReturn(ctx context.Context, params map[string]string) (*Outcome, error) {
	return r.Reconcile(ctx, SourceReturn, params)
}

// HandleIPN never fails; every condition maps to a fixed acknowledgement code.
func (r *reconciler) HandleIPN(ctx context.Context, params map[string]string) vnpay.Ack {
	out, err := r.Reconcile(ctx, SourceIPN, params)
	return AckFor(out, err)
}

func AckFor(out *Outcome, err error) vnpay.Ack {
	switch {
	case err == nil && out != nil && out.Kind == OutcomeAlreadyProcessed:
		return vnpay.AckAlreadyConfirmed
	case err == nil:
		return vnpay.AckSuccess
	case errors.Is(err, domain.ErrMissingReference):
		return vnpay.AckInvalidRequest
	case errors.Is(err, domain.ErrPaymentNotFound):
		return vnpay.AckOrderNotFound
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrMissingSignature):
		return vnpay.AckInvalidSignature
	case errors.Is(err, domain.ErrAmountMismatch):
		return vnpay.AckInvalidAmount
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return vnpay.AckAlreadyConfirmed
	default:
		return vnpay.AckUnknownError
	}
}

func (r *reconciler) Reconcile(ctx context.Context, source CallbackSource, params map[string]string) (*Outcome, error) {
	txnRef := strings.TrimSpace(params["vnp_TxnRef"])
	if txnRef == "" {
		r.logger.Warn("callback without transaction reference", zap.String("source", string(source)))
		return nil, domain.ErrMissingReference
	}

	log := r.logger.With(zap.String("source", string(source)), zap.String("txn_ref", txnRef))

	payment, err := r.paymentRepo.FindByTxnRef(ctx, txnRef)
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			log.Error("payment lookup failed", zap.Error(err))
			return nil, domain.Transient("payment lookup failed", err)
		}
		log.Warn("callback for unknown payment")
		return nil, err
	}
	log = log.With(zap.String("payment_id", payment.ID.String()))

	result, err := r.gateway.VerifyCallback(params)
	if err != nil {
		log.Warn("callback signature rejected", zap.Error(err))
		r.appendAudit(ctx, log, payment, domain.LogSignatureInvalid, "Chữ ký không hợp lệ: "+domain.MessageOf(err), source, params)
		return nil, err
	}

	if !result.AmountValid || result.Amount != payment.MinorAmount() {
		log.Warn("callback amount mismatch",
			zap.Int64("expected", payment.MinorAmount()),
			zap.String("got", params["vnp_Amount"]),
		)
		r.appendAudit(ctx, log, payment, domain.LogAmountMismatch, "Số tiền không khớp", source, params)
		return nil, domain.ErrAmountMismatch
	}

	if payment.Status.IsTerminal() {
		return r.duplicate(ctx, log, payment, source, params), nil
	}

	var booking *domain.Booking
	if payment.HasBooking() {
		if booking, err = r.bookingRepo.FindByID(ctx, nil, payment.BookingID.UUID); err != nil {
			log.Error("booking lookup failed", zap.Error(err))
			return nil, domain.Transient("booking lookup failed", err)
		}
	}

	if result.Success() {
		return r.succeed(ctx, log, payment, booking, result, source)
	}
	return r.fail(ctx, log, payment, booking, result, source)
}

func gatewayResult(res *vnpay.CallbackResult) repo.GatewayResult {
	return repo.GatewayResult{
		ResponseCode:  res.ResponseCode,
		TransactionNo: res.TransactionNo,
		BankCode:      res.BankCode,
		CardType:      res.CardType,
		PayDate:       res.PayDate,
		SecureHash:    res.SecureHash,
	}
}

func auditData(source CallbackSource, params map[string]string) map[string]any {
	data := make(map[string]any, len(params)+1)
	for k, v := range params {
		data[k] = v
	}
	data["source"] = string(source)
	return data
}

func (r *reconciler) succeed(ctx context.Context, log *zap.Logger, p *domain.Payment, booking *domain.Booking, res *vnpay.CallbackResult, source CallbackSource) (*Outcome, error) {
	paidAt := r.now()
	bookingConfirmed := false

	err := r.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		won, err := r.paymentRepo.CompleteIfOpen(ctx, tx, p.ID, gatewayResult(res), paidAt)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}

		if booking != nil {
			if bookingConfirmed, err = r.bookingRepo.ConfirmIfActive(ctx, tx, booking.ID); err != nil {
				return err
			}
		}

		data := auditData(source, res.Raw)
		if booking != nil {
			data["booking_confirmed"] = bookingConfirmed
		}
		return r.appendSettlement(ctx, tx, p, domain.LogPaymentSuccess, "Thanh toán thành công", data, source)
	})
	if errors.Is(err, errLostRace) {
		return r.duplicate(ctx, log, p, source, res.Raw), nil
	}
	if errors.Is(err, domain.ErrAlreadyPaid) {
		return r.doubleCharge(ctx, log, p, booking, res, source)
	}
	if err != nil {
		log.Error("completing payment failed", zap.Error(err))
		return nil, domain.Transient("could not record payment", err)
	}

	p.Status = domain.PaymentCompleted
	p.PaidAt = &paidAt
	p.ResponseCode = res.ResponseCode
	p.TransactionNo = res.TransactionNo
	p.BankCode = res.BankCode
	p.CardType = res.CardType
	p.PayDate = res.PayDate

	if booking != nil && !bookingConfirmed {
		log.Warn("payment completed but booking was no longer active", zap.String("booking_id", booking.ID.String()))
	}
	log.Info("payment completed", zap.String("transaction_no", res.TransactionNo))

	r.publish(log, notify.PaymentSucceeded, p, booking, res, source, "")
	return &Outcome{Kind: OutcomeSucceeded, Payment: p, Message: "Thanh toán thành công"}, nil
}

func (r *reconciler) fail(ctx context.Context, log *zap.Logger, p *domain.Payment, booking *domain.Booking, res *vnpay.CallbackResult, source CallbackSource) (*Outcome, error) {
	reason := vnpay.ResponseMessage(res.ResponseCode)

	err := r.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		won, err := r.paymentRepo.FailIfOpen(ctx, tx, p.ID, gatewayResult(res), reason)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}
		return r.appendSettlement(ctx, tx, p, domain.LogPaymentFailed, "Thanh toán thất bại: "+reason, auditData(source, res.Raw), source)
	})
	if errors.Is(err, errLostRace) {
		return r.duplicate(ctx, log, p, source, res.Raw), nil
	}
	if err != nil {
		log.Error("failing payment failed", zap.Error(err))
		return nil, domain.Transient("could not record payment", err)
	}

	p.Status = domain.PaymentFailed
	p.ResponseCode = res.ResponseCode
	log.Info("payment failed", zap.String("response_code", res.ResponseCode))

	r.publish(log, notify.PaymentFailed, p, booking, res, source, reason)
	return &Outcome{Kind: OutcomeFailed, Payment: p, Message: reason}, nil
}

// doubleCharge handles a success for a booking another payment already paid.
// The money was captured, so the attempt is closed as failed with a refund
// note and the gateway gets a final answer instead of retrying forever.
func (r *reconciler) doubleCharge(ctx context.Context, log *zap.Logger, p *domain.Payment, booking *domain.Booking, res *vnpay.CallbackResult, source CallbackSource) (*Outcome, error) {
	reason := "Đặt sân đã được thanh toán bởi giao dịch khác, cần hoàn tiền"
	log.Error("payment captured for an already paid booking",
		zap.String("transaction_no", res.TransactionNo),
		zap.String("amount", p.Amount.String()),
	)

	err := r.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		won, err := r.paymentRepo.FailIfOpen(ctx, tx, p.ID, gatewayResult(res), reason)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}
		data := auditData(source, res.Raw)
		data["duplicate_charge"] = true
		data["refund_required"] = true
		return r.appendSettlement(ctx, tx, p, domain.LogPaymentSuccess, "Thanh toán thành công nhưng đặt sân đã được thanh toán, cần hoàn tiền", data, source)
	})
	if errors.Is(err, errLostRace) {
		return r.duplicate(ctx, log, p, source, res.Raw), nil
	}
	if err != nil {
		log.Error("recording duplicate charge failed", zap.Error(err))
		return nil, domain.Transient("could not record payment", err)
	}

	p.Status = domain.PaymentFailed
	p.ResponseCode = res.ResponseCode
	p.TransactionNo = res.TransactionNo

	r.publish(log, notify.PaymentFailed, p, booking, res, source, reason)
	return &Outcome{Kind: OutcomeAlreadyProcessed, Payment: p, Message: reason}, nil
}

// appendSettlement writes the entry for a state transition, plus ipn_received
// when the server-to-server notification is what settled the payment.
func (r *reconciler) appendSettlement(ctx context.Context, tx repo.DBTX, p *domain.Payment, action domain.LogAction, msg string, data map[string]any, source CallbackSource) error {
	if err := r.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, action, "VNPay: "+msg, data)); err != nil {
		return err
	}
	if source != SourceIPN {
		return nil
	}
	return r.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, domain.LogIPNReceived, "Nhận IPN từ VNPay - "+msg, data))
}

// duplicate records a repeated delivery without touching payment or booking.
func (r *reconciler) duplicate(ctx context.Context, log *zap.Logger, p *domain.Payment, source CallbackSource, params map[string]string) *Outcome {
	current, err := r.paymentRepo.FindByID(ctx, nil, p.ID)
	if err == nil {
		p = current
	}
	log.Info("callback already processed", zap.String("status", string(p.Status)))
	r.appendAudit(ctx, log, p, domain.LogCallbackDuplicate, "Giao dịch đã được xử lý trước đó", source, params)
	return &Outcome{Kind: OutcomeAlreadyProcessed, Payment: p, Message: "Giao dịch đã được xử lý"}
}

// appendAudit writes a log entry for a rejected or repeated callback. These
// carry no state change, so a write failure is logged and not returned.
func (r *reconciler) appendAudit(ctx context.Context, log *zap.Logger, p *domain.Payment, action domain.LogAction, msg string, source CallbackSource, params map[string]string) {
	entry := domain.NewPaymentLog(p.ID, action, msg, auditData(source, params))
	if err := r.logRepo.Append(ctx, nil, entry); err != nil {
		log.Error("writing payment log failed", zap.String("action", string(action)), zap.Error(err))
	}
}

func (r *reconciler) publish(log *zap.Logger, kind notify.EventKind, p *domain.Payment, booking *domain.Booking, res *vnpay.CallbackResult, source CallbackSource, reason string) {
	if r.events == nil {
		return
	}
	ev := notify.Event{
		Kind:         kind,
		PaymentID:    p.ID,
		UserID:       p.UserID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		TxnRef:       p.TxnRef,
		ResponseCode: res.ResponseCode,
		Reason:       reason,
		Source:       string(source),
		OccurredAt:   r.now(),
	}
	if booking != nil {
		id := booking.ID
		ev.BookingID = &id
		ev.CourtName = booking.CourtName
		ev.BookingDate = booking.Date.Format("02/01/2006")
	}
	if !r.events.Enqueue(ev) {
		log.Warn("notification dropped", zap.String("kind", string(kind)))
	}
}
