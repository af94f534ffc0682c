package service

import (
	"context"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Dashboard struct {
	BookingCounts  map[string]int
	BookingRevenue decimal.Decimal
	ServiceOrders  int
	ServiceRevenue decimal.Decimal
	LastSevenDays  []repo.DailyRevenue
}

type RevenueReport struct {
	From           *time.Time
	To             *time.Time
	BookingRevenue decimal.Decimal
	ServiceRevenue decimal.Decimal
	Total          decimal.Decimal
	ByCourt        []repo.CourtRevenue
	ByCategory     []repo.CategoryRevenue
}

type ReportService interface {
	Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error)
	Revenue(ctx context.Context, actor domain.Actor, r repo.DateRange) (*RevenueReport, error)
}

type reportService struct {
	reportRepo repo.ReportRepo
	now        func() time.Time
}

func NewReportService(reportRepo repo.ReportRepo) ReportService {
	return &reportService{reportRepo: reportRepo, now: time.Now}
}

func (s *reportService) Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	if !actor.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}

	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.BookingCounts, err = s.reportRepo.BookingStatusCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.BookingRevenue, err = s.reportRepo.BookingRevenue(ctx, repo.DateRange{})
		return err
	})
	g.Go(func() (err error) {
		d.ServiceOrders, err = s.reportRepo.ServiceOrderCount(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.ServiceRevenue, err = s.reportRepo.ServiceRevenue(ctx, repo.DateRange{})
		return err
	})
	g.Go(func() (err error) {
		d.LastSevenDays, err = s.reportRepo.DailyBookingRevenue(ctx, day(s.now()).AddDate(0, 0, -6))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Transient("could not load dashboard", err)
	}
	return &d, nil
}

func (s *reportService) Revenue(ctx context.Context, actor domain.Actor, r repo.DateRange) (*RevenueReport, error) {
	if !actor.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return nil, domain.NewError(domain.KindValidation, "end date is before start date", nil)
	}

	rep := RevenueReport{From: r.From, To: r.To}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.BookingRevenue, err = s.reportRepo.BookingRevenue(ctx, r)
		return err
	})
	g.Go(func() (err error) {
		rep.ServiceRevenue, err = s.reportRepo.ServiceRevenue(ctx, r)
		return err
	})
	g.Go(func() (err error) {
		rep.ByCourt, err = s.reportRepo.RevenueByCourt(ctx, r)
		return err
	})
	g.Go(func() (err error) {
		rep.ByCategory, err = s.reportRepo.RevenueByCategory(ctx, r)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Transient("could not build revenue report", err)
	}
	rep.Total = rep.BookingRevenue.Add(rep.ServiceRevenue)
	return &rep, nil
}
