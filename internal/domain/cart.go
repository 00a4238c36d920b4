package domain

import "pos-backoffice/internal/apperr"

// MaxQuantity is the largest quantity a sale line column can hold.
const MaxQuantity = 2147483647

// CartItem is one pending entry of a checkout.
type CartItem struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=2147483647"`
}

// Cart accumulates items before checkout. Adding a product already in the
// cart increases its quantity instead of adding a second entry. Insertion
// order is kept. A Cart is not safe for concurrent use.
type Cart struct {
	items []CartItem
}

func (c *Cart) Add(productID int64, quantity int) error {
	item := CartItem{ProductID: productID, Quantity: quantity}
	if err := ValidateStruct("cart item", &item); err != nil {
		return err
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			if c.items[i].Quantity > MaxQuantity-quantity {
				return tooMany()
			}
			c.items[i].Quantity += quantity
			return nil
		}
	}
	c.items = append(c.items, item)
	return nil
}

// SetQuantity replaces a product's quantity; zero removes it.
func (c *Cart) SetQuantity(productID int64, quantity int) error {
	if quantity < 0 {
		return apperr.Validation("invalid cart item", apperr.FieldError{Field: "quantity", Message: "must not be negative"})
	}
	if quantity > MaxQuantity {
		return tooMany()
	}
	if quantity == 0 {
		c.Remove(productID)
		return nil
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = quantity
			return nil
		}
	}
	return c.Add(productID, quantity)
}

func tooMany() error {
	return apperr.Validation("invalid cart item", apperr.FieldError{Field: "quantity", Message: "must be 2147483647 or less"})
}

func (c *Cart) Remove(productID int64) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns a copy of the cart contents.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int      { return len(c.items) }
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }
func (c *Cart) Clear()        { c.items = nil }
