package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusPlaced          Status = "PLACED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusReturnRequested Status = "RETURN_REQUESTED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Line is an immutable snapshot of a purchased product.
type Line struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	OrderID     uuid.UUID   `json:"order_id" db:"order_id"`
	ProductID   uuid.UUID   `json:"product_id" db:"product_id"`
	ProductName string      `json:"product_name,omitempty" db:"-"`
	Quantity    int         `json:"quantity" db:"quantity"`
	UnitPrice   money.Money `json:"unit_price" db:"unit_price"`
}

func (l Line) Total() money.Money {
	return l.UnitPrice.Mul(l.Quantity)
}

type Order struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	UserID     uuid.UUID   `json:"user_id" db:"user_id"`
	Status     Status      `json:"status" db:"status"`
	Lines      []Line      `json:"lines" db:"-"`
	Total      money.Money `json:"total" db:"total"`
	Discount   money.Money `json:"discount" db:"discount"`
	CouponCode *string     `json:"coupon_code,omitempty" db:"coupon_code"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// Subtotal sums the line snapshots. Subtotal - Discount equals Total for every
// order created by checkout.
func (o Order) Subtotal() money.Money {
	sum := money.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}
