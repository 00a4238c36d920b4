package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a committed checkout. It is never updated after creation.
type Sale struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    int64           `json:"user_id" validate:"gt=0"`
	Total     decimal.Decimal `json:"total"`
	Lines     []SaleLine      `json:"lines,omitempty"`
}

// SaleLineKey is the composite primary key of a sale line.
type SaleLineKey struct {
	SaleID    int64
	ProductID int64
}

// SaleLine links a sale to a product. Product is populated by reads that
// resolve product detail.
type SaleLine struct {
	SaleID    int64    `json:"sale_id" validate:"gt=0"`
	ProductID int64    `json:"product_id" validate:"gt=0"`
	Quantity  int      `json:"quantity" validate:"gte=1,lte=2147483647"`
	Product   *Product `json:"product,omitempty"`
}

func (l *SaleLine) Key() SaleLineKey {
	return SaleLineKey{SaleID: l.SaleID, ProductID: l.ProductID}
}

// Subtotal is quantity times the resolved product price, zero when the
// product was not loaded.
func (l *SaleLine) Subtotal() decimal.Decimal {
	if l.Product == nil {
		return decimal.Zero
	}
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ProductSales is a product together with the quantity sold across sales.
type ProductSales struct {
	Product  Product `json:"product"`
	Quantity int64   `json:"quantity"`
}
