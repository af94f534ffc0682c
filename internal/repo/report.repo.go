package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (d DateRange) args() (any, any) {
	var from, to any
	if d.From != nil {
		from = *d.From
	}
	if d.To != nil {
		to = *d.To
	}
	return from, to
}

type CourtRevenue struct {
	CourtID   string
	CourtName string
	Bookings  int
	Revenue   decimal.Decimal
}

type CategoryRevenue struct {
	Category string
	Revenue  decimal.Decimal
}

type DailyRevenue struct {
	Date    time.Time
	Revenue decimal.Decimal
}

type ReportRepo interface {
	BookingStatusCounts(ctx context.Context) (map[string]int, error)
	// BookingRevenue sums confirmed and completed bookings by booking date.
	BookingRevenue(ctx context.Context, r DateRange) (decimal.Decimal, error)
	// ServiceRevenue sums completed service orders by creation date.
	ServiceRevenue(ctx context.Context, r DateRange) (decimal.Decimal, error)
	ServiceOrderCount(ctx context.Context) (int, error)
	RevenueByCourt(ctx context.Context, r DateRange) ([]CourtRevenue, error)
	RevenueByCategory(ctx context.Context, r DateRange) ([]CategoryRevenue, error)
	DailyBookingRevenue(ctx context.Context, since time.Time) ([]DailyRevenue, error)
}

type reportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) ReportRepo {
	return &reportRepo{db: db}
}

func (r *reportRepo) BookingStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("booking status counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *reportRepo) BookingRevenue(ctx context.Context, dr DateRange) (decimal.Decimal, error) {
	from, to := dr.args()
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_price), 0) FROM bookings
		WHERE status IN ('confirmed', 'completed')
		  AND ($1::date IS NULL OR date >= $1)
		  AND ($2::date IS NULL OR date <= $2)`, from, to,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("booking revenue: %w", err)
	}
	return total, nil
}

func (r *reportRepo) ServiceRevenue(ctx context.Context, dr DateRange) (decimal.Decimal, error) {
	from, to := dr.args()
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_price), 0) FROM service_orders
		WHERE status = 'completed'
		  AND ($1::date IS NULL OR created_at::date >= $1)
		  AND ($2::date IS NULL OR created_at::date <= $2)`, from, to,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("service revenue: %w", err)
	}
	return total, nil
}

func (r *reportRepo) ServiceOrderCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("service order count: %w", err)
	}
	return n, nil
}

func (r *reportRepo) RevenueByCourt(ctx context.Context, dr DateRange) ([]CourtRevenue, error) {
	from, to := dr.args()
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id::text, c.name, COUNT(b.id), COALESCE(SUM(b.total_price), 0)
		FROM courts c
		JOIN bookings b ON b.court_id = c.id
		WHERE b.status IN ('confirmed', 'completed')
		  AND ($1::date IS NULL OR b.date >= $1)
		  AND ($2::date IS NULL OR b.date <= $2)
		GROUP BY c.id, c.name
		ORDER BY 4 DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("revenue by court: %w", err)
	}
	defer rows.Close()

	var out []CourtRevenue
	for rows.Next() {
		var cr CourtRevenue
		if err := rows.Scan(&cr.CourtID, &cr.CourtName, &cr.Bookings, &cr.Revenue); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *reportRepo) RevenueByCategory(ctx context.Context, dr DateRange) ([]CategoryRevenue, error) {
	from, to := dr.args()
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.category, COALESCE(SUM(i.subtotal), 0)
		FROM service_order_items i
		JOIN services s ON s.id = i.service_id
		JOIN service_orders o ON o.id = i.order_id
		WHERE o.status = 'completed'
		  AND ($1::date IS NULL OR o.created_at::date >= $1)
		  AND ($2::date IS NULL OR o.created_at::date <= $2)
		GROUP BY s.category
		ORDER BY 2 DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("revenue by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryRevenue
	for rows.Next() {
		var cr CategoryRevenue
		if err := rows.Scan(&cr.Category, &cr.Revenue); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *reportRepo) DailyBookingRevenue(ctx context.Context, since time.Time) ([]DailyRevenue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, COALESCE(SUM(total_price), 0)
		FROM bookings
		WHERE status IN ('confirmed', 'completed') AND date >= $1
		GROUP BY date
		ORDER BY date`, since)
	if err != nil {
		return nil, fmt.Errorf("daily booking revenue: %w", err)
	}
	defer rows.Close()

	var out []DailyRevenue
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Date, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
