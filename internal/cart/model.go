package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
)

type Line struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	AddedAt   time.Time       `json:"added_at" db:"added_at"`
	Product   catalog.Product `json:"product" db:"-"`
}

// Total is the line price at the product's current unit price.
func (l Line) Total() money.Money {
	return l.Product.Price.Mul(l.Quantity)
}

func (l Line) Demand() stock.Demand {
	return stock.Demand{
		ProductID: l.ProductID,
		Name:      l.Product.Name,
		Requested: l.Quantity,
		Available: l.Product.Stock,
	}
}

// Demands maps cart lines onto the stock validator's input.
func Demands(lines []Line) []stock.Demand {
	demands := make([]stock.Demand, 0, len(lines))
	for _, l := range lines {
		demands = append(demands, l.Demand())
	}
	return demands
}

// Products returns the product of each line in cart order.
func Products(lines []Line) []catalog.Product {
	products := make([]catalog.Product, 0, len(lines))
	for _, l := range lines {
		products = append(products, l.Product)
	}
	return products
}

func LineIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	return ids
}
