package domain

import (
	"github.com/shopspring/decimal"

	"pos-backoffice/internal/apperr"
)

// MaxPrice is the largest value a numeric(10,2) price column holds.
var MaxPrice = decimal.RequireFromString("99999999.99")

// Category groups products on the register screen.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

func (c *Category) Validate() error {
	return ValidateStruct("category", c)
}

// Product is a sellable catalog item. Categories is always populated on
// reads, empty when the product is unassigned.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description"`
	Size        string          `json:"size,omitempty" validate:"max=50"`
	Price       decimal.Decimal `json:"price"`
	Categories  []Category      `json:"categories"`
}

func (p *Product) Validate() error {
	fields := FormatValidationErrors(validate.Struct(p))

	switch {
	case p.Price.IsNegative():
		fields = append(fields, apperr.FieldError{Field: "price", Message: "must not be negative"})
	case p.Price.GreaterThan(MaxPrice):
		fields = append(fields, apperr.FieldError{Field: "price", Message: "must be at most " + MaxPrice.String()})
	case !p.Price.Equal(p.Price.Round(2)):
		fields = append(fields, apperr.FieldError{Field: "price", Message: "must have at most two decimal places"})
	}

	if len(fields) > 0 {
		return apperr.Validation("invalid product", fields...)
	}
	return nil
}

// HasCategory reports whether the product is assigned to categoryID.
func (p *Product) HasCategory(categoryID int64) bool {
	for _, c := range p.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}
