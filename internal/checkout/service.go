// Package checkout converts a cart into an order in a single transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/pricing"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
)

var ErrEmptyCart = errors.New("cart is empty")

// Tx is the set of writes available inside one checkout transaction.
type Tx interface {
	// LockCart returns the owner's lines with the line and product rows
	// locked, ordered by product id.
	LockCart(ctx context.Context, owner uuid.UUID) ([]cart.Line, error)
	InsertOrder(ctx context.Context, o *order.Order) error
	// DecrementStock reduces stock by quantity only if enough remains and
	// reports whether the row was updated.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
	// ClearCart deletes the given lines. Lines added after LockCart stay.
	ClearCart(ctx context.Context, lineIDs []uuid.UUID) error
}

// Store runs fn inside one transaction. A non-nil error from fn rolls back
// every write fn made.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type CartReader interface {
	Lines(ctx context.Context, owner uuid.UUID) ([]cart.Line, error)
}

type CouponResolver interface {
	GetActive(ctx context.Context, code string) (*coupon.Coupon, error)
}

// Preview is the cart view: current prices, applied coupon and any lines the
// stock cannot cover.
type Preview struct {
	Lines             []cart.Line      `json:"lines"`
	Quote             pricing.Quote    `json:"quote"`
	Shortages         []stock.Shortage `json:"shortages,omitempty"`
	CouponInvalidated bool             `json:"coupon_invalidated"`
}

type Result struct {
	Order *order.Order
	// CouponInvalidated is set when the session coupon no longer resolved and
	// the order was priced without it.
	CouponInvalidated bool
}

type Service interface {
	Preview(ctx context.Context, owner uuid.UUID, couponCode string) (*Preview, error)
	Checkout(ctx context.Context, owner uuid.UUID, couponCode string) (*Result, error)
}

type service struct {
	store   Store
	carts   CartReader
	coupons CouponResolver
}

func NewService(store Store, carts CartReader, coupons CouponResolver) Service {
	return &service{store: store, carts: carts, coupons: coupons}
}

func (s *service) Preview(ctx context.Context, owner uuid.UUID, couponCode string) (*Preview, error) {
	lines, err := s.carts.Lines(ctx, owner)
	if err != nil {
		return nil, err
	}

	c, invalidated, err := s.resolveCoupon(ctx, couponCode)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Lines:             lines,
		Quote:             pricing.Price(lines, c),
		Shortages:         stock.Shortages(cart.Demands(lines)),
		CouponInvalidated: invalidated,
	}, nil
}

func (s *service) Checkout(ctx context.Context, owner uuid.UUID, couponCode string) (*Result, error) {
	var result *Result

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.LockCart(ctx, owner)
		if err != nil {
			return fmt.Errorf("checkout: failed to lock cart: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		if err := stock.Validate(cart.Demands(lines)); err != nil {
			return err
		}

		c, invalidated, err := s.resolveCoupon(ctx, couponCode)
		if err != nil {
			return err
		}
		quote := pricing.Price(lines, c)

		o := &order.Order{
			UserID:     owner,
			Status:     order.StatusPlaced,
			Total:      quote.Total,
			Discount:   quote.Discount,
			CouponCode: quote.CouponCode(),
			Lines:      make([]order.Line, 0, len(lines)),
		}
		for _, l := range lines {
			o.Lines = append(o.Lines, order.Line{
				ProductID:   l.ProductID,
				ProductName: l.Product.Name,
				Quantity:    l.Quantity,
				UnitPrice:   l.Product.Price,
			})
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("checkout: failed to insert order: %w", err)
		}

		for _, l := range lines {
			ok, err := tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("checkout: failed to decrement stock for product %s: %w", l.ProductID, err)
			}
			if !ok {
				return &stock.InsufficientStockError{Shortages: []stock.Shortage{stock.Shortage(l.Demand())}}
			}
		}

		if err := tx.ClearCart(ctx, cart.LineIDs(lines)); err != nil {
			return fmt.Errorf("checkout: failed to clear cart: %w", err)
		}

		result = &Result{Order: o, CouponInvalidated: invalidated}
		return nil
	})
	if err != nil {
		var insufficient *stock.InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyCart):
			log.Warn().Stringer("user_id", owner).Msg("service: checkout of empty cart")
			return nil, ErrEmptyCart
		case errors.As(err, &insufficient):
			log.Warn().Err(err).Stringer("user_id", owner).Int("shortages", len(insufficient.Shortages)).Msg("service: checkout rejected for stock")
			return nil, insufficient
		}
		log.Error().Err(err).Stringer("user_id", owner).Msg("service: checkout failed")
		return nil, fmt.Errorf("service: checkout failed: %w", err)
	}

	log.Info().
		Stringer("order_id", result.Order.ID).
		Stringer("user_id", owner).
		Stringer("total", result.Order.Total).
		Stringer("discount", result.Order.Discount).
		Msg("service: order placed")
	return result, nil
}

// resolveCoupon looks up code as an active coupon. A blank code yields no
// coupon; a code that no longer resolves yields no coupon and invalidated=true.
func (s *service) resolveCoupon(ctx context.Context, code string) (*coupon.Coupon, bool, error) {
	if code == "" {
		return nil, false, nil
	}

	c, err := s.coupons.GetActive(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrInvalidCoupon) {
			log.Info().Str("code", code).Msg("service: session coupon no longer valid")
			return nil, true, nil
		}
		return nil, false, err
	}
	return c, false, nil
}
