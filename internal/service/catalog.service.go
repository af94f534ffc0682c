package service

import (
	"context"
	"errors"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogService interface {
	ListServices(ctx context.Context, category domain.ServiceCategory) ([]domain.Service, error)
	CreateOrder(ctx context.Context, actor domain.Actor, bookingID *uuid.UUID, notes string) (*domain.ServiceOrder, error)
	GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ServiceOrder, error)
	ListOrders(ctx context.Context, actor domain.Actor, limit int) ([]domain.ServiceOrder, error)
	AddItem(ctx context.Context, actor domain.Actor, orderID, serviceID uuid.UUID, quantity int) (*domain.ServiceOrder, error)
	RemoveItem(ctx context.Context, actor domain.Actor, orderID, itemID uuid.UUID) (*domain.ServiceOrder, error)
}

type catalogService struct {
	tx          repo.Transactor
	catalogRepo repo.CatalogRepo
	bookingRepo repo.BookingRepo
	logger      *zap.Logger
	now         func() time.Time
}

func NewCatalogService(tx repo.Transactor, catalogRepo repo.CatalogRepo, bookingRepo repo.BookingRepo, logger *zap.Logger) CatalogService {
	return &catalogService{
		tx:          tx,
		catalogRepo: catalogRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *catalogService) ListServices(ctx context.Context, category domain.ServiceCategory) ([]domain.Service, error) {
	if category != "" && !category.Valid() {
		return nil, domain.NewError(domain.KindValidation, "unknown service category", nil)
	}
	return s.catalogRepo.ListServices(ctx, category, true)
}

func (s *catalogService) CreateOrder(ctx context.Context, actor domain.Actor, bookingID *uuid.UUID, notes string) (*domain.ServiceOrder, error) {
	now := s.now()
	order := &domain.ServiceOrder{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		Status:     domain.ServiceOrderPending,
		TotalPrice: decimal.Zero,
		Notes:      notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if bookingID != nil {
		b, err := s.bookingRepo.FindByID(ctx, nil, *bookingID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(b.UserID) {
			return nil, domain.ErrBookingNotFound
		}
		order.BookingID = uuid.NullUUID{UUID: b.ID, Valid: true}
	}

	if err := s.catalogRepo.CreateOrder(ctx, nil, order); err != nil {
		return nil, domain.Transient("could not create service order", err)
	}
	s.logger.Info("service order created", zap.String("order_id", order.ID.String()))
	return order, nil
}

func (s *catalogService) GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ServiceOrder, error) {
	o, err := s.catalogRepo.FindOrder(ctx, nil, id, false)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(o.UserID) {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *catalogService) ListOrders(ctx context.Context, actor domain.Actor, limit int) ([]domain.ServiceOrder, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if actor.Role.IsStaff() {
		return s.catalogRepo.ListOrders(ctx, nil, limit)
	}
	return s.catalogRepo.ListOrders(ctx, &actor.UserID, limit)
}

// lockOrder loads the order under a row lock and checks it may still change.
func (s *catalogService) lockOrder(ctx context.Context, tx repo.DBTX, actor domain.Actor, id uuid.UUID) (*domain.ServiceOrder, error) {
	o, err := s.catalogRepo.FindOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(o.UserID) {
		return nil, domain.ErrOrderNotFound
	}
	if !o.Editable() {
		return nil, domain.ErrOrderClosed
	}
	return o, nil
}

func (s *catalogService) AddItem(ctx context.Context, actor domain.Actor, orderID, serviceID uuid.UUID, quantity int) (*domain.ServiceOrder, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	var order *domain.ServiceOrder
	err := s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		o, err := s.lockOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		svc, err := s.catalogRepo.FindService(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if !svc.Available {
			return domain.ErrServiceUnavailable
		}
		if err := s.catalogRepo.DecrementStock(ctx, tx, svc.ID, quantity); err != nil {
			return err
		}

		item := o.AddItem(svc, quantity)
		if err := s.catalogRepo.SaveItem(ctx, tx, item); err != nil {
			return err
		}
		if err := s.catalogRepo.UpdateOrderTotal(ctx, tx, o.ID, o.TotalPrice); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, classify("could not add item", err)
	}

	s.logger.Info("service order item added",
		zap.String("order_id", orderID.String()),
		zap.String("service_id", serviceID.String()),
		zap.Int("quantity", quantity),
	)
	return order, nil
}

func (s *catalogService) RemoveItem(ctx context.Context, actor domain.Actor, orderID, itemID uuid.UUID) (*domain.ServiceOrder, error) {
	var order *domain.ServiceOrder
	err := s.tx.WithinTx(ctx, func(tx repo.DBTX) error {
		o, err := s.lockOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		item, ok := o.RemoveItem(itemID)
		if !ok {
			return domain.ErrOrderItemNotFound
		}
		if err := s.catalogRepo.DeleteItem(ctx, tx, item.ID); err != nil {
			return err
		}
		if err := s.catalogRepo.IncrementStock(ctx, tx, item.ServiceID, item.Quantity); err != nil {
			return err
		}
		if err := s.catalogRepo.UpdateOrderTotal(ctx, tx, o.ID, o.TotalPrice); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, classify("could not remove item", err)
	}

	s.logger.Info("service order item removed",
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID.String()),
	)
	return order, nil
}

// classify keeps domain errors as they are and wraps everything else as transient.
func classify(msg string, err error) error {
	var appErr *domain.Error
	if errors.As(err, &appErr) {
		return err
	}
	return domain.Transient(msg, err)
}
