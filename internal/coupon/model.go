package coupon

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixed
}

// Coupon is a named discount rule. For KindPercentage, Value is read as 0-100.
type Coupon struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Code      string          `json:"code" db:"code"`
	Kind      Kind            `json:"kind" db:"kind"`
	Value     decimal.Decimal `json:"value" db:"value"`
	Active    bool            `json:"active" db:"active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
