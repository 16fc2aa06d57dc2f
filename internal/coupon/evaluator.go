package coupon

import "github.com/vasiliy-maslov/storefront-service/internal/money"

// Evaluate returns the discount c grants on subtotal. A nil or inactive coupon
// grants nothing, and the result never exceeds subtotal.
func Evaluate(c *Coupon, subtotal money.Money) money.Money {
	if c == nil || !c.Active || subtotal.IsNegative() {
		return money.Zero
	}

	var discount money.Money
	switch c.Kind {
	case KindPercentage:
		discount = subtotal.Percent(c.Value)
	case KindFixed:
		discount = money.FromDecimal(c.Value)
	default:
		return money.Zero
	}

	if discount.IsNegative() {
		return money.Zero
	}
	return discount.Min(subtotal)
}
