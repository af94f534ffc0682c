package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/notify"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStore persists uploaded files and returns where they landed.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

type ProofUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var proofExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ProofService handles QR transfer payments: the customer uploads a proof of
// transfer and staff approve or reject it.
type ProofService interface {
	Submit(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, upload ProofUpload, client ClientInfo) (*domain.Payment, error)
	Review(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, approve bool, note string) (*domain.Payment, error)
}

type proofService struct {
	tx          repo.Transactor
	paymentRepo repo.PaymentRepo
	logRepo     repo.PaymentLogRepo
	bookingRepo repo.BookingRepo
	store       ObjectStore
	events      EventQueue
	maxBytes    int64
	logger      *zap.Logger
	now         func() time.Time
}

func NewProofService(
	tx repo.Transactor,
	paymentRepo repo.PaymentRepo,
	logRepo repo.PaymentLogRepo,
	bookingRepo repo.BookingRepo,
	store ObjectStore,
	events EventQueue,
	maxBytes int64,
	logger *zap.Logger,
) ProofService {
	return &proofService{
		tx:          tx,
		paymentRepo: paymentRepo,
		logRepo:     logRepo,
		bookingRepo: bookingRepo,
		store:       store,
		events:      events,
		maxBytes:    maxBytes,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *proofService) Submit(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, upload ProofUpload, client ClientInfo) (*domain.Payment, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	ext, ok := proofExtensions[contentType]
	if !ok {
		return nil, domain.ErrProofType
	}
	if upload.Size <= 0 || (s.maxBytes > 0 && upload.Size > s.maxBytes) {
		return nil, domain.ErrProofTooLarge
	}

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
	inFlight, err := s.paymentRepo.HasInFlightForBooking(ctx, bookingID, s.now())
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, domain.ErrPaymentInProgress
	}

	description := fmt.Sprintf("Chuyển khoản QR đặt sân %s ngày %s", booking.CourtName, booking.Date.Format("02/01/2006"))
	payment, err := domain.NewPayment(actor.UserID, &booking.ID, booking.TotalPrice, description)
	if err != nil {
		return nil, err
	}
	payment.Method = domain.MethodQRCode
	payment.Status = domain.PaymentProcessing
	payment.IPAddress = client.IP
	payment.UserAgent = client.UserAgent

	key := path.Join("payment-proofs", booking.ID.String(), uuid.NewString()+ext)
	location, err := s.store.Put(ctx, key, contentType, upload.Body, upload.Size)
	if err != nil {
		return nil, domain.Transient("could not store payment proof", err)
	}

	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		superseded, err := s.paymentRepo.CancelPendingByBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		for _, id := range superseded {
			if err := s.logRepo.Append(ctx, tx, domain.NewPaymentLog(id, domain.LogCancelled,
				"Thay thế bởi chuyển khoản QR", map[string]any{"replaced_by": payment.ID.String()})); err != nil {
				return err
			}
		}
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}
		return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(payment.ID, domain.LogProofUploaded,
			"Khách hàng tải lên minh chứng chuyển khoản", map[string]any{
				"booking_id":   booking.ID.String(),
				"amount":       payment.Amount.String(),
				"proof":        location,
				"filename":     upload.Filename,
				"content_type": contentType,
			}))
	})
	if err != nil {
		return nil, domain.Transient("could not record payment proof", err)
	}

	s.logger.Info("payment proof uploaded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("proof", location),
	)
	return payment, nil
}

func (s *proofService) Review(ctx context.Context, actor domain.Actor, paymentID uuid.UUID, approve bool, note string) (*domain.Payment, error) {
	if !actor.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	p, err := s.paymentRepo.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Method != domain.MethodQRCode {
		return nil, domain.ErrNotProofPayment
	}
	if p.Status != domain.PaymentProcessing {
		return nil, fmt.Errorf("payment is %s: %w", p.Status, domain.ErrInvalidTransition)
	}

	now := s.now()
	result := repo.GatewayResult{ResponseCode: "00"}
	data := map[string]any{"reviewed_by": actor.UserID.String()}
	if note != "" {
		data["note"] = note
	}

	bookingConfirmed := false
	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		if !approve {
			result.ResponseCode = "24"
			reason := "Minh chứng chuyển khoản bị từ chối"
			if note != "" {
				reason += ": " + note
			}
			won, err := s.paymentRepo.FailIfOpen(ctx, tx, p.ID, result, reason)
			if err != nil {
				return err
			}
			if !won {
				return domain.ErrInvalidTransition
			}
			return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, domain.LogPaymentFailed, reason, data))
		}

		won, err := s.paymentRepo.CompleteIfOpen(ctx, tx, p.ID, result, now)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrInvalidTransition
		}
		if p.HasBooking() {
			if bookingConfirmed, err = s.bookingRepo.ConfirmIfActive(ctx, tx, p.BookingID.UUID); err != nil {
				return err
			}
		}
		data["booking_confirmed"] = bookingConfirmed
		return s.logRepo.Append(ctx, tx, domain.NewPaymentLog(p.ID, domain.LogPaymentSuccess,
			"Nhân viên xác nhận chuyển khoản", data))
	})
	switch {
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrAlreadyPaid):
		return nil, err
	case err != nil:
		return nil, domain.Transient("could not record review", err)
	}

	kind := notify.PaymentFailed
	if approve {
		kind = notify.PaymentSucceeded
		p.Status = domain.PaymentCompleted
		p.PaidAt = &now
	} else {
		p.Status = domain.PaymentFailed
	}
	p.ResponseCode = result.ResponseCode

	s.logger.Info("payment proof reviewed",
		zap.String("payment_id", p.ID.String()),
		zap.Bool("approved", approve),
		zap.Bool("booking_confirmed", bookingConfirmed),
		zap.String("reviewed_by", actor.UserID.String()),
	)
	s.publish(ctx, kind, p, note)
	return p, nil
}

func (s *proofService) publish(ctx context.Context, kind notify.EventKind, p *domain.Payment, reason string) {
	if s.events == nil {
		return
	}
	ev := notify.Event{
		Kind:         kind,
		PaymentID:    p.ID,
		UserID:       p.UserID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		ResponseCode: p.ResponseCode,
		Reason:       reason,
		Source:       "staff_review",
		OccurredAt:   s.now(),
	}
	if p.HasBooking() {
		id := p.BookingID.UUID
		ev.BookingID = &id
		if b, err := s.bookingRepo.FindByID(ctx, nil, id); err == nil {
			ev.CourtName = b.CourtName
			ev.BookingDate = b.Date.Format("02/01/2006")
		}
	}
	if !s.events.Enqueue(ev) {
		s.logger.Warn("notification dropped", zap.String("kind", string(kind)))
	}
}
