package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
	"pos-backoffice/internal/domain"
	"pos-backoffice/internal/metrics"
	"pos-backoffice/internal/receipt"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/session"
)

var ErrEmptyCart = &apperr.Error{
	Kind:    apperr.KindValidation,
	Message: "cart is empty",
	Fields:  []apperr.FieldError{{Field: "items", Message: "At least one item is required"}},
}

// SaleService turns carts into committed sales and renders them back.
type SaleService interface {
	Checkout(ctx context.Context, items []domain.CartItem) (int64, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
	Receipt(ctx context.Context, id int64) (string, error)
	ReceiptPDF(ctx context.Context, id int64, w io.Writer) error
}

// SaleRepositories bundles the repositories a SaleService works with.
type SaleRepositories struct {
	Sales    repository.SaleRepository
	Lines    repository.SaleLineRepository
	Products repository.ProductRepository
	Users    repository.UserRepository
}

// SaleOptions configures receipts. With ReceiptDir set, every committed
// sale is also archived there as PDF.
type SaleOptions struct {
	StoreName  string
	ReceiptDir string
}

type saleService struct {
	tx       Transactor
	repos    SaleRepositories
	sessions *session.Context
	opts     SaleOptions
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewSaleService(
	tx Transactor,
	repos SaleRepositories,
	sessions *session.Context,
	opts SaleOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) SaleService {
	return &saleService{
		tx:       tx,
		repos:    repos,
		sessions: sessions,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Checkout records the cart as one sale for the logged in user and returns
// its id. Prices are read inside the transaction, so the stored total
// matches the catalog at commit time. Repeated products are merged into
// one line. Nothing is written unless every step succeeds.
func (s *saleService) Checkout(ctx context.Context, items []domain.CartItem) (int64, error) {
	start := time.Now()

	sess, err := s.sessions.Require(session.ProcessSales)
	if err != nil {
		s.metrics.ObserveCheckout(metrics.OutcomeRejected, 0, time.Since(start))
		return 0, err
	}

	lines, err := mergeItems(items)
	if err != nil {
		s.metrics.ObserveCheckout(metrics.OutcomeRejected, 0, time.Since(start))
		return 0, err
	}

	var sale *domain.Sale
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		ids := make([]int64, len(lines))
		for i, it := range lines {
			ids[i] = it.ProductID
		}

		prices, err := s.repos.Products.WithTx(tx).PricesByID(ctx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, it := range lines {
			price, ok := prices[it.ProductID]
			if !ok {
				return apperr.NotFound(fmt.Sprintf("product %d not found", it.ProductID))
			}
			total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		sale = &domain.Sale{UserID: sess.User.ID, Total: total, Timestamp: s.now()}
		if _, err := s.repos.Sales.WithTx(tx).Insert(ctx, sale); err != nil {
			return err
		}

		saleLines := s.repos.Lines.WithTx(tx)
		for _, it := range lines {
			line := &domain.SaleLine{SaleID: sale.ID, ProductID: it.ProductID, Quantity: it.Quantity}
			if _, err := saleLines.Insert(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if k := apperr.KindOf(err); k == apperr.KindValidation || k == apperr.KindNotFound {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.ObserveCheckout(outcome, 0, time.Since(start))
		s.logger.Warn("Checkout failed", zap.Int64("user_id", sess.User.ID), zap.Error(err))
		return 0, err
	}

	s.metrics.ObserveCheckout(metrics.OutcomeSuccess, len(lines), time.Since(start))
	s.logger.Info("Sale committed",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("user_id", sale.UserID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("lines", len(lines)),
	)

	if s.opts.ReceiptDir != "" {
		s.archiveReceipt(ctx, sale.ID)
	}
	return sale.ID, nil
}

// GetSale returns the sale with its lines and their products.
func (s *saleService) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	if _, err := s.sessions.Require(session.ViewSales); err != nil {
		return nil, err
	}
	return s.loadSale(ctx, id)
}

// DeleteSale removes a sale and its lines. Administrators only.
func (s *saleService) DeleteSale(ctx context.Context, id int64) error {
	sess, err := s.sessions.Require(session.ManageInventory)
	if err != nil {
		return err
	}
	ok, err := s.repos.Sales.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrSaleNotFound
	}
	s.logger.Info("Sale deleted", zap.Int64("sale_id", id), zap.Int64("by", sess.User.ID))
	return nil
}

func (s *saleService) Receipt(ctx context.Context, id int64) (string, error) {
	r, err := s.receipt(ctx, id)
	if err != nil {
		return "", err
	}
	return receipt.Text(r), nil
}

func (s *saleService) ReceiptPDF(ctx context.Context, id int64, w io.Writer) error {
	r, err := s.receipt(ctx, id)
	if err != nil {
		return err
	}
	return receipt.PDF(w, r)
}

func (s *saleService) receipt(ctx context.Context, id int64) (receipt.Receipt, error) {
	if _, err := s.sessions.Require(session.ViewSales); err != nil {
		return receipt.Receipt{}, err
	}
	sale, err := s.loadSale(ctx, id)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return receipt.Receipt{StoreName: s.opts.StoreName, Cashier: s.cashierName(ctx, sale.UserID), Sale: sale}, nil
}

func (s *saleService) loadSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := s.repos.Sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repos.Lines.FindBySale(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.Lines = make([]domain.SaleLine, len(lines))
	for i, l := range lines {
		sale.Lines[i] = *l
	}
	return sale, nil
}

func (s *saleService) cashierName(ctx context.Context, userID int64) string {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("Failed to load cashier for receipt", zap.Int64("user_id", userID), zap.Error(err))
		}
		return ""
	}
	return user.FullName()
}

// archiveReceipt runs after commit; a failure is logged and the sale stands.
func (s *saleService) archiveReceipt(ctx context.Context, id int64) {
	sale, err := s.loadSale(ctx, id)
	if err == nil {
		r := receipt.Receipt{StoreName: s.opts.StoreName, Cashier: s.cashierName(ctx, sale.UserID), Sale: sale}
		var path string
		path, err = receipt.WritePDF(s.opts.ReceiptDir, r)
		if err == nil {
			s.logger.Debug("Receipt archived", zap.Int64("sale_id", id), zap.String("path", path))
			return
		}
	}
	s.logger.Warn("Failed to archive receipt", zap.Int64("sale_id", id), zap.Error(err))
}

// mergeItems validates the cart and folds repeated products into one
// entry, keeping first-seen order.
func mergeItems(items []domain.CartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	var cart domain.Cart
	for _, it := range items {
		if err := cart.Add(it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}
	return cart.Items(), nil
}
