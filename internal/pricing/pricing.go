// Package pricing computes cart totals. It performs no I/O and never mutates
// its input.
package pricing

import (
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
)

type LineTotal struct {
	LineID    uuid.UUID   `json:"line_id"`
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
	Total     money.Money `json:"total"`
}

type Quote struct {
	LineTotals []LineTotal    `json:"lines"`
	Subtotal   money.Money    `json:"subtotal"`
	Discount   money.Money    `json:"discount"`
	Total      money.Money    `json:"total"`
	Coupon     *coupon.Coupon `json:"coupon,omitempty"`
}

// CouponCode returns the applied coupon's code, or nil when none applies.
func (q Quote) CouponCode() *string {
	if q.Coupon == nil || !q.Coupon.Active {
		return nil
	}
	code := q.Coupon.Code
	return &code
}

// Price totals the lines at their current unit prices and applies c, which
// may be nil. Total = Subtotal - Discount and is never negative.
func Price(lines []cart.Line, c *coupon.Coupon) Quote {
	q := Quote{
		LineTotals: make([]LineTotal, 0, len(lines)),
		Subtotal:   money.Zero,
		Coupon:     c,
	}

	for _, l := range lines {
		lt := LineTotal{
			LineID:    l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.Price,
			Total:     l.Total(),
		}
		q.LineTotals = append(q.LineTotals, lt)
		q.Subtotal = q.Subtotal.Add(lt.Total)
	}

	q.Discount = coupon.Evaluate(c, q.Subtotal)
	q.Total = q.Subtotal.Sub(q.Discount)
	return q
}
