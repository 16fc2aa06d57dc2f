package catalog

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
)

type Product struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	SellerID    *uuid.UUID  `json:"seller_id,omitempty" db:"seller_id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Price       money.Money `json:"price" db:"price"`
	Stock       int         `json:"stock" db:"stock"`
	Category    string      `json:"category" db:"category"` // slash-delimited, e.g. "Watches/Luxury"
	ImageURL    *string     `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// TopCategory returns the first segment of the category path.
func (p Product) TopCategory() string {
	return TopCategory(p.Category)
}

func TopCategory(path string) string {
	top, _, _ := strings.Cut(path, "/")
	return strings.TrimSpace(top)
}

// OwnedBy reports whether sellerID listed the product.
func (p Product) OwnedBy(sellerID uuid.UUID) bool {
	return p.SellerID != nil && *p.SellerID == sellerID
}

// Highlights groups the product lists shown on the landing page.
type Highlights struct {
	Recent      []Product `json:"recent"`
	BestSellers []Product `json:"best_sellers"`
	Featured    []Product `json:"featured"` // in stock, most units first
}
