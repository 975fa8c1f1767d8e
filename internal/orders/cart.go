package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NewCart returns an empty cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}, TotalPrice: decimal.Zero}
}

// AddOrMerge folds item into the cart. An existing line for the same product
// gets its quantity increased and its subtotal repriced at unitPrice; other
// lines keep the subtotal from their last recompute. A merge that would leave
// a non-positive quantity is rejected and the cart is left untouched.
// Callers must Recalculate before persisting.
func AddOrMerge(c *Cart, item ItemInput, unitPrice decimal.Decimal) error {
	for i := range c.Items {
		if c.Items[i].ProductID != item.ProductID {
			continue
		}
		qty := c.Items[i].Quantity + item.Quantity
		if qty <= 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
		}
		c.Items[i].Quantity = qty
		c.Items[i].Subtotal = unitPrice.Mul(decimal.NewFromInt(int64(qty)))
		return nil
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("product %s: %w", item.ProductID, ErrInvalidQuantity)
	}
	c.Items = append(c.Items, CartItem{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
	})
	return nil
}

// Remove drops the line for productID and reports whether one existed.
// Removing the last line leaves an empty cart, not a deleted one.
func Remove(c *Cart, productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Recalculate sets TotalPrice to the sum of line subtotals.
func Recalculate(c *Cart) {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal)
	}
	c.TotalPrice = total
}

func quantityOf(c *Cart, productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}
