// Package stock checks requested quantities against available inventory.
package stock

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

// Demand is one requested quantity of a product alongside the stock on hand.
type Demand struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

// Shortage describes a single product whose demand exceeds its stock.
type Shortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// InsufficientStockError lists every product that cannot be fulfilled.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// Validate returns nil when every demand can be met, otherwise an
// *InsufficientStockError naming all offending products in input order.
func Validate(demands []Demand) error {
	var shortages []Shortage
	for _, d := range demands {
		if d.Requested > d.Available {
			shortages = append(shortages, Shortage(d))
		}
	}
	if len(shortages) == 0 {
		return nil
	}
	return &InsufficientStockError{Shortages: shortages}
}

// Shortages returns the offending products, or nil when stock suffices.
func Shortages(demands []Demand) []Shortage {
	err := Validate(demands)
	if err == nil {
		return nil
	}
	return err.(*InsufficientStockError).Shortages
}
