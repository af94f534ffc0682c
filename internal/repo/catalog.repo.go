package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CatalogRepo interface {
	ListServices(ctx context.Context, category domain.ServiceCategory, availableOnly bool) ([]domain.Service, error)
	FindService(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Service, error)
	CreateService(ctx context.Context, svc *domain.Service) error
	// DecrementStock takes qty units only if enough remain, else domain.ErrInsufficientStock.
	DecrementStock(ctx context.Context, tx DBTX, serviceID uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, tx DBTX, serviceID uuid.UUID, qty int) error

	CreateOrder(ctx context.Context, tx DBTX, order *domain.ServiceOrder) error
	// FindOrder loads the order with its items; forUpdate locks the order row.
	FindOrder(ctx context.Context, tx DBTX, id uuid.UUID, forUpdate bool) (*domain.ServiceOrder, error)
	ListOrders(ctx context.Context, userID *uuid.UUID, limit int) ([]domain.ServiceOrder, error)
	SaveItem(ctx context.Context, tx DBTX, item domain.ServiceOrderItem) error
	DeleteItem(ctx context.Context, tx DBTX, itemID uuid.UUID) error
	UpdateOrderTotal(ctx context.Context, tx DBTX, orderID uuid.UUID, total decimal.Decimal) error
}

type catalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepo {
	return &catalogRepo{db: db}
}

const serviceColumns = `id, name, category, description, price, stock, is_available`

func scanService(row rowScanner) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &s.Description, &s.Price, &s.Stock, &s.Available); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *catalogRepo) ListServices(ctx context.Context, category domain.ServiceCategory, availableOnly bool) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_available)
		ORDER BY category, name`, string(category), availableOnly)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}
	return services, rows.Err()
}

func (r *catalogRepo) FindService(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Service, error) {
	s, err := scanService(pick(r.db, tx).QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service %s: %w", id, err)
	}
	return s, nil
}

func (r *catalogRepo) CreateService(ctx context.Context, s *domain.Service) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO services (id, name, category, description, price, stock, is_available) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Name, s.Category, s.Description, s.Price, s.Stock, s.Available,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *catalogRepo) DecrementStock(ctx context.Context, tx DBTX, serviceID uuid.UUID, qty int) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE services SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1`,
		qty, serviceID,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *catalogRepo) IncrementStock(ctx context.Context, tx DBTX, serviceID uuid.UUID, qty int) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE services SET stock = stock + $1, updated_at = now() WHERE id = $2`, qty, serviceID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

func (r *catalogRepo) CreateOrder(ctx context.Context, tx DBTX, o *domain.ServiceOrder) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`INSERT INTO service_orders (id, user_id, booking_id, status, total_price, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, o.BookingID, o.Status, o.TotalPrice, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert service order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, booking_id, status, total_price, notes, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.ServiceOrder, error) {
	var o domain.ServiceOrder
	if err := row.Scan(&o.ID, &o.UserID, &o.BookingID, &o.Status, &o.TotalPrice, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *catalogRepo) FindOrder(ctx context.Context, tx DBTX, id uuid.UUID, forUpdate bool) (*domain.ServiceOrder, error) {
	q := pick(r.db, tx)
	query := `SELECT ` + orderColumns + ` FROM service_orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service order %s: %w", id, err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.service_id, s.name, i.quantity, i.unit_price, i.subtotal
		FROM service_order_items i
		JOIN services s ON s.id = i.service_id
		WHERE i.order_id = $1
		ORDER BY s.name`, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.ServiceOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ServiceID, &it.ServiceName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *catalogRepo) ListOrders(ctx context.Context, userID *uuid.UUID, limit int) ([]domain.ServiceOrder, error) {
	var uid uuid.NullUUID
	if userID != nil {
		uid = uuid.NullUUID{UUID: *userID, Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM service_orders
		WHERE $1::uuid IS NULL OR user_id = $1
		ORDER BY created_at DESC LIMIT $2`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("list service orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *catalogRepo) SaveItem(ctx context.Context, tx DBTX, it domain.ServiceOrderItem) error {
	_, err := pick(r.db, tx).ExecContext(ctx, `
		INSERT INTO service_order_items (id, order_id, service_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, service_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price, subtotal = EXCLUDED.subtotal`,
		it.ID, it.OrderID, it.ServiceID, it.Quantity, it.UnitPrice, it.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("save order item: %w", err)
	}
	return nil
}

func (r *catalogRepo) DeleteItem(ctx context.Context, tx DBTX, itemID uuid.UUID) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM service_order_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrOrderItemNotFound
	}
	return nil
}

func (r *catalogRepo) UpdateOrderTotal(ctx context.Context, tx DBTX, orderID uuid.UUID, total decimal.Decimal) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE service_orders SET total_price = $1, updated_at = now() WHERE id = $2`, total, orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	return nil
}
