package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateBookingInput struct {
	CourtID uuid.UUID
	Date    time.Time
	SlotIDs []int
	Notes   string
}

// SlotAvailability is one time slot of a court on a given day.
type SlotAvailability struct {
	Slot      domain.TimeSlot
	Available bool
}

type BookingService interface {
	ListCourts(ctx context.Context) ([]domain.Court, error)
	Availability(ctx context.Context, courtID uuid.UUID, date time.Time) ([]SlotAvailability, error)
	Create(ctx context.Context, actor domain.Actor, in CreateBookingInput) (*domain.Booking, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
	List(ctx context.Context, actor domain.Actor, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	// Cancel releases the slots and cancels any payment still waiting for the gateway.
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	SetStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, status domain.BookingStatus) error
}

type bookingService struct {
	tx          repo.Transactor
	bookingRepo repo.BookingRepo
	courtRepo   repo.CourtRepo
	paymentRepo repo.PaymentRepo
	logRepo     repo.PaymentLogRepo
	logger      *zap.Logger
	now         func() time.Time
}

func NewBookingService(
	tx repo.Transactor,
	bookingRepo repo.BookingRepo,
	courtRepo repo.CourtRepo,
	paymentRepo repo.PaymentRepo,
	logRepo repo.PaymentLogRepo,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		tx:          tx,
		bookingRepo: bookingRepo,
		courtRepo:   courtRepo,
		paymentRepo: paymentRepo,
		logRepo:     logRepo,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *bookingService) ListCourts(ctx context.Context) ([]domain.Court, error) {
	return s.courtRepo.List(ctx, true)
}

// day truncates t to midnight in the venue's zone.
func day(t time.Time) time.Time {
	y, m, d := t.In(domain.LocalZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, domain.LocalZone)
}

func (s *bookingService) Availability(ctx context.Context, courtID uuid.UUID, date time.Time) ([]SlotAvailability, error) {
	if _, err := s.courtRepo.FindByID(ctx, courtID); err != nil {
		return nil, err
	}
	slots, err := s.courtRepo.TimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	taken, err := s.bookingRepo.TakenSlots(ctx, courtID, day(date))
	if err != nil {
		return nil, err
	}

	busy := make(map[int]bool, len(taken))
	for _, id := range taken {
		busy[id] = true
	}
	out := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotAvailability{Slot: slot, Available: !busy[slot.ID]})
	}
	return out, nil
}

func (s *bookingService) Create(ctx context.Context, actor domain.Actor, in CreateBookingInput) (*domain.Booking, error) {
	court, err := s.courtRepo.FindByID(ctx, in.CourtID)
	if err != nil {
		return nil, err
	}
	if !court.Active {
		return nil, domain.ErrCourtInactive
	}

	date := day(in.Date)
	if date.Before(day(s.now())) {
		return nil, domain.ErrDateInPast
	}

	slotIDs, err := s.normalizeSlots(ctx, in.SlotIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	booking := &domain.Booking{
		ID:        uuid.New(),
		UserID:    actor.UserID,
		CourtID:   court.ID,
		CourtName: court.Name,
		Date:      date,
		SlotIDs:   slotIDs,
		Status:    domain.BookingPending,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	booking.Recalculate(court.PricePerHour)

	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		return s.bookingRepo.Create(ctx, tx, booking)
	})
	if errors.Is(err, domain.ErrSlotTaken) {
		return nil, err
	}
	if err != nil {
		return nil, domain.Transient("could not create booking", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("court", court.Name),
		zap.String("date", date.Format(time.DateOnly)),
		zap.Ints("slots", slotIDs),
	)
	return booking, nil
}

// normalizeSlots dedupes and sorts the requested slot ids and rejects unknown ones.
func (s *bookingService) normalizeSlots(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, domain.ErrNoSlots
	}
	slots, err := s.courtRepo.TimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[int]bool, len(slots))
	for _, slot := range slots {
		known[slot.ID] = true
	}

	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, fmt.Errorf("slot %d: %w", id, domain.ErrUnknownSlot)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

func (s *bookingService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.bookingRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(b.UserID) {
		return nil, domain.ErrBookingNotFound
	}
	return b, nil
}

func (s *bookingService) List(ctx context.Context, actor domain.Actor, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filter := repo.BookingFilter{Status: status, Limit: limit, Offset: offset}
	if !actor.Role.IsStaff() {
		filter.UserID = &actor.UserID
	}
	return s.bookingRepo.List(ctx, filter)
}

func (s *bookingService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !b.CanCustomerCancel() {
		return domain.ErrBookingNotCancelable
	}

	var cancelled []uuid.UUID
	err = s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		if err := s.bookingRepo.UpdateStatus(ctx, tx, b.ID, domain.BookingCancelled); err != nil {
			return err
		}
		if err := s.bookingRepo.ReleaseSlots(ctx, tx, b.ID); err != nil {
			return err
		}
		ids, err := s.paymentRepo.CancelPendingByBooking(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		for _, pid := range ids {
			err := s.logRepo.Append(ctx, tx, domain.NewPaymentLog(pid, domain.LogCancelled,
				"Hủy do đặt sân bị hủy", map[string]any{"booking_id": b.ID.String()}))
			if err != nil {
				return err
			}
		}
		cancelled = ids
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindTransient {
			return domain.Transient("could not cancel booking", err)
		}
		return err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", b.ID.String()),
		zap.Int("payments_cancelled", len(cancelled)),
	)
	return nil
}

// SetStatus is the staff override. Moving a booking out of the active states
// frees its slots.
func (s *bookingService) SetStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, status domain.BookingStatus) error {
	if !actor.Role.IsStaff() {
		return domain.ErrForbidden
	}
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}

	err := s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		b, err := s.bookingRepo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if status.Active() && !b.Status.Active() {
			return fmt.Errorf("cannot reactivate a %s booking: %w", b.Status, domain.ErrInvalidStatus)
		}
		if err := s.bookingRepo.UpdateStatus(ctx, tx, id, status); err != nil {
			return err
		}
		if !status.Active() {
			return s.bookingRepo.ReleaseSlots(ctx, tx, id)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindTransient {
			return domain.Transient("could not update booking", err)
		}
		return err
	}

	s.logger.Info("booking status changed",
		zap.String("booking_id", id.String()),
		zap.String("status", string(status)),
		zap.String("by", actor.UserID.String()),
	)
	return nil
}
