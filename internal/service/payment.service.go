package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/vnpay"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientInfo is the caller's network identity recorded for audit.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type PaymentDetail struct {
	Payment *domain.Payment
	Logs    []domain.PaymentLog
}

type PaymentService interface {
	CreateForBooking(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, client ClientInfo) (*domain.Payment, error)
	// CreateRedirect builds the signed gateway URL and moves the payment to processing.
	CreateRedirect(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, client ClientInfo) (string, error)
	Get(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (*PaymentDetail, error)
	List(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Payment, error)
	Cancel(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) error
	// Retry returns the booking to create a fresh payment for. The old payment is left as history.
	Retry(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (uuid.UUID, error)
}

type paymentService struct {
	tx          repo.Transactor
	paymentRepo repo.PaymentRepo
	logRepo     repo.PaymentLogRepo
	bookingRepo repo.BookingRepo
	gateway     vnpay.PaymentGateway
	logger      *zap.Logger
	now         func() time.Time
}

func NewPaymentService(
	tx repo.Transactor,
	paymentRepo repo.PaymentRepo,
	logRepo repo.PaymentLogRepo,
	bookingRepo repo.BookingRepo,
	gateway vnpay.PaymentGateway,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		tx:          tx,
		paymentRepo: paymentRepo,
		logRepo:     logRepo,
		bookingRepo: bookingRepo,
		gateway:     gateway,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *paymentService) CreateForBooking(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, client ClientInfo) (*domain.Payment, error) {
	booking, err := s.bookingRepo.FindByID(ctx, nil, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != domain.BookingPending {
		return nil, fmt.Errorf("booking is %s: %w", booking.Status, domain.ErrInvalidTransition)
	}

	paid, err := s.paymentRepo.HasCompletedForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, domain.ErrAlreadyPaid
	}
	// One request at the gateway per booking; a second paid one could never be recorded.
	inFlight, err := s.paymentRepo.HasInFlightForBooking(ctx, bookingID, s.now())
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, domain.ErrPaymentInProgress
	}

	description := fmt.Sprintf("Thanh toán đặt sân %s ngày %s", booking.CourtName, booking.Date.Format("02/01/2006"))
	payment, err := domain.NewPayment(actor.UserID, &booking.ID, booking.TotalPrice, description)
	if err != nil {
		return nil, err
	}
	payment.IPAddress = client.IP
	payment.UserAgent = client.UserAgent

	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		// older requests that never reached the gateway are superseded
		superseded, err := s.paymentRepo.CancelPendingByBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		for _, id := range superseded {
			if err := s.logRepo.Append(ctx, tx, domain.NewPaymentLog(id, domain.LogCancelled,
				"Thay thế bởi thanh toán mới", map[string]any{"replaced_by": payment.ID.String()})); err != nil {
				return err
			}
		}
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}
		return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(payment.ID, domain.LogCreated,
			"Tạo thanh toán VNPay", map[string]any{"booking_id": booking.ID.String(), "amount": payment.Amount.String()}))
	})
	if err != nil {
		return nil, domain.Transient("could not create payment", err)
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

func (s *paymentService) load(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(p.UserID) {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func orderInfo(booking *domain.Booking, txnRef string) string {
	if booking != nil && booking.CourtName != "" {
		return "Dat san " + booking.CourtName
	}
	return "Thanh toan " + txnRef
}

func (s *paymentService) CreateRedirect(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, client ClientInfo) (string, error) {
	p, err := s.load(ctx, actor, paymentID)
	if err != nil {
		return "", err
	}
	now := s.now()
	if p.Status != domain.PaymentPending {
		return "", fmt.Errorf("payment is %s: %w", p.Status, domain.ErrInvalidTransition)
	}
	if p.IsExpired(now) {
		return "", domain.ErrPaymentExpired
	}
	if !p.Amount.IsPositive() {
		return "", domain.ErrInvalidAmount
	}

	var booking *domain.Booking
	if p.HasBooking() {
		if booking, err = s.bookingRepo.FindByID(ctx, nil, p.BookingID.UUID); err != nil {
			return "", err
		}
	}

	txnRef := domain.TxnRefFor(p.ID)
	info := orderInfo(booking, txnRef)

	redirect, err := s.gateway.BuildRedirect(vnpay.PaymentRequest{
		TxnRef:      txnRef,
		MinorAmount: p.MinorAmount(),
		OrderInfo:   info,
		IPAddr:      client.IP,
		Now:         now,
	})
	if err != nil {
		return "", err
	}

	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		err := s.paymentRepo.MarkRedirected(ctx, tx, p.ID, repo.RedirectInfo{
			TxnRef:    txnRef,
			OrderInfo: info,
			IPAddress: redirect.Params["vnp_IpAddr"],
			UserAgent: client.UserAgent,
			ExpiredAt: redirect.ExpireAt,
		})
		if err != nil {
			return err
		}
		return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, domain.LogRedirectToVNPay,
			"Chuyển hướng đến VNPay", map[string]any{
				"txn_ref": txnRef,
				"amount":  redirect.Params["vnp_Amount"],
				"mock":    s.gateway.Mock(),
			}))
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		return "", err
	}
	if err != nil {
		return "", domain.Transient("could not persist payment request", err)
	}

	s.logger.Info("redirecting to vnpay",
		zap.String("payment_id", p.ID.String()),
		zap.String("txn_ref", txnRef),
		zap.Bool("mock", s.gateway.Mock()),
	)
	return redirect.URL, nil
}

func (s *paymentService) Get(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (*PaymentDetail, error) {
	p, err := s.load(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListByPayment(ctx, p.ID, 10)
	if err != nil {
		return nil, err
	}
	return &PaymentDetail{Payment: p, Logs: logs}, nil
}

func (s *paymentService) List(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.paymentRepo.ListByUser(ctx, actor.UserID, limit, offset)
}

func (s *paymentService) Cancel(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) error {
	p, err := s.load(ctx, actor, paymentID)
	if err != nil {
		return err
	}
	if !p.CanCancel() {
		return fmt.Errorf("payment is %s: %w", p.Status, domain.ErrInvalidTransition)
	}

	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		ok, err := s.paymentRepo.CancelIfPending(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		if p.HasBooking() {
			if err := s.bookingRepo.UpdateStatus(ctx, tx, p.BookingID.UUID, domain.BookingCancelled); err != nil {
				return err
			}
			if err := s.bookingRepo.ReleaseSlots(ctx, tx, p.BookingID.UUID); err != nil {
				return err
			}
		}
		return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, domain.LogCancelled, "Người dùng hủy thanh toán", nil))
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindTransient {
			return domain.Transient("could not cancel payment", err)
		}
		return err
	}

	s.logger.Info("payment cancelled", zap.String("payment_id", p.ID.String()))
	return nil
}

func (s *paymentService) Retry(ctx context.Context, actor domain.Actor, paymentID uuid.UUID) (uuid.UUID, error) {
	p, err := s.load(ctx, actor, paymentID)
	if err != nil {
		return uuid.Nil, err
	}
	if !p.CanRetry() {
		return uuid.Nil, fmt.Errorf("payment is %s: %w", p.Status, domain.ErrInvalidTransition)
	}
	if !p.HasBooking() {
		return uuid.Nil, domain.ErrNothingToRetry
	}
	// Cancelling a payment cancels its booking, so only a still-pending
	// booking can take a new payment; anything else has to be rebooked.
	booking, err := s.bookingRepo.FindByID(ctx, nil, p.BookingID.UUID)
	if err != nil {
		return uuid.Nil, err
	}
	if booking.Status != domain.BookingPending {
		return uuid.Nil, fmt.Errorf("booking is %s: %w", booking.Status, domain.ErrInvalidTransition)
	}
	return p.BookingID.UUID, nil
}
