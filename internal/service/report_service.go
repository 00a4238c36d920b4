package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

// ReportService answers sales questions. Cashiers see today's sales and
// their own history; everything else needs ViewReports.
type ReportService interface {
	ListSales(ctx context.Context) ([]*domain.Sale, error)
	SalesToday(ctx context.Context) ([]*domain.Sale, error)
	SalesByUser(ctx context.Context, userID int64) ([]*domain.Sale, error)
	SalesByRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error)
	DailyTotal(ctx context.Context, day time.Time) (decimal.Decimal, error)
	TopSellers(ctx context.Context, limit int) ([]*domain.ProductSales, error)
	TotalSold(ctx context.Context, productID int64) (int64, error)
	SalesContainingProduct(ctx context.Context, productID int64) ([]*domain.SaleLine, error)
}

type reportService struct {
	sales    repository.SaleRepository
	lines    repository.SaleLineRepository
	sessions *session.Context
}

func NewReportService(sales repository.SaleRepository, lines repository.SaleLineRepository, sessions *session.Context) ReportService {
	return &reportService{sales: sales, lines: lines, sessions: sessions}
}

func (s *reportService) ListSales(ctx context.Context) ([]*domain.Sale, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return nil, err
	}
	return s.sales.FindAll(ctx)
}

func (s *reportService) SalesToday(ctx context.Context) ([]*domain.Sale, error) {
	if _, err := s.sessions.Require(session.ViewSales); err != nil {
		return nil, err
	}
	return s.sales.FindToday(ctx)
}

// SalesByUser is open to a cashier for their own id.
func (s *reportService) SalesByUser(ctx context.Context, userID int64) ([]*domain.Sale, error) {
	sess, err := s.sessions.Require(session.ViewSales)
	if err != nil {
		return nil, err
	}
	if sess.User.ID != userID {
		if _, err := s.sessions.Require(session.ViewReports); err != nil {
			return nil, err
		}
	}
	return s.sales.FindByUser(ctx, userID)
}

func (s *reportService) SalesByRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return nil, err
	}
	return s.sales.FindByDateRange(ctx, from, to)
}

func (s *reportService) DailyTotal(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return decimal.Zero, err
	}
	return s.sales.TotalForDay(ctx, day)
}

func (s *reportService) TopSellers(ctx context.Context, limit int) ([]*domain.ProductSales, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return nil, err
	}
	return s.lines.TopSellers(ctx, limit)
}

func (s *reportService) TotalSold(ctx context.Context, productID int64) (int64, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return 0, err
	}
	return s.lines.TotalSold(ctx, productID)
}

func (s *reportService) SalesContainingProduct(ctx context.Context, productID int64) ([]*domain.SaleLine, error) {
	if _, err := s.sessions.Require(session.ViewReports); err != nil {
		return nil, err
	}
	return s.lines.FindByProduct(ctx, productID)
}
