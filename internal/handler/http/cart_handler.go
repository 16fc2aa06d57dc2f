package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
	"github.com/vasiliy-maslov/storefront-service/internal/session"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
)

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// UpdateItemRequest sets a line's quantity; zero removes the line.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type CartResponse struct {
	Lines           []cart.Line       `json:"lines"`
	Subtotal        money.Money       `json:"subtotal"`
	Discount        money.Money       `json:"discount"`
	Total           money.Money       `json:"total"`
	Coupon          *string           `json:"coupon,omitempty"`
	Shortages       []stock.Shortage  `json:"shortages"`
	Recommendations []catalog.Product `json:"recommendations"`
}

type CartHandler struct {
	carts    cart.Service
	checkout checkout.Service
	catalog  catalog.Service
	coupons  coupon.Service
	sessions session.Store
	validate *validator.Validate
}

func NewCartHandler(carts cart.Service, co checkout.Service, cat catalog.Service, coupons coupon.Service, sessions session.Store) *CartHandler {
	return &CartHandler{
		carts:    carts,
		checkout: co,
		catalog:  cat,
		coupons:  coupons,
		sessions: sessions,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Patch("/cart/items/{id}", h.handleUpdateItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
	router.Post("/cart/coupon", h.handleApplyCoupon)
	router.Get("/coupons", h.handleListActiveCoupons)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	h.respondWithCart(w, r, actor.UserID)
}

// respondWithCart renders the cart view. A session coupon that no longer
// resolves is dropped from the session.
func (h *CartHandler) respondWithCart(w http.ResponseWriter, r *http.Request, owner uuid.UUID) {
	ctx := r.Context()

	code, err := h.sessions.CouponCode(ctx, owner)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load cart")
		return
	}

	preview, err := h.checkout.Preview(ctx, owner, code)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load cart")
		return
	}
	if preview.CouponInvalidated {
		if err := h.sessions.ClearCouponCode(ctx, owner); err != nil {
			log.Error().Err(err).Stringer("user_id", owner).Msg("Failed to clear invalid session coupon")
		}
	}

	recommendations, err := h.catalog.Recommend(ctx, cart.Products(preview.Lines))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load cart")
		return
	}

	shortages := preview.Shortages
	if shortages == nil {
		shortages = []stock.Shortage{}
	}
	respondWithJSON(w, http.StatusOK, CartResponse{
		Lines:           preview.Lines,
		Subtotal:        preview.Quote.Subtotal,
		Discount:        preview.Quote.Discount,
		Total:           preview.Quote.Total,
		Coupon:          preview.Quote.CouponCode(),
		Shortages:       shortages,
		Recommendations: recommendations,
	})
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	line, err := h.carts.AddItem(r.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to add item to cart")
		return
	}
	respondWithJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	lineID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	line, err := h.carts.UpdateQuantity(r.Context(), actor.UserID, lineID, *req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update cart item")
		return
	}
	if line == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	lineID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(r.Context(), actor.UserID, lineID); err != nil {
		respondWithServiceError(w, r, err, "Failed to remove cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	ctx := r.Context()

	code := strings.TrimSpace(req.Code)
	if code == "" {
		if err := h.sessions.ClearCouponCode(ctx, actor.UserID); err != nil {
			respondWithServiceError(w, r, err, "Failed to clear coupon")
			return
		}
		h.respondWithCart(w, r, actor.UserID)
		return
	}

	c, err := h.coupons.GetActive(ctx, code)
	if err != nil {
		if !errors.Is(err, coupon.ErrInvalidCoupon) {
			respondWithServiceError(w, r, err, "Failed to apply coupon")
			return
		}
		if clearErr := h.sessions.ClearCouponCode(ctx, actor.UserID); clearErr != nil {
			log.Error().Err(clearErr).Stringer("user_id", actor.UserID).Msg("Failed to clear session coupon")
		}
		respondWithServiceError(w, r, err, "Failed to apply coupon")
		return
	}

	if err := h.sessions.SetCouponCode(ctx, actor.UserID, c.Code); err != nil {
		respondWithServiceError(w, r, err, "Failed to apply coupon")
		return
	}
	h.respondWithCart(w, r, actor.UserID)
}

func (h *CartHandler) handleListActiveCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListActive(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list coupons")
		return
	}
	respondWithJSON(w, http.StatusOK, coupons)
}
