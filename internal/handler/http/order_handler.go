package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/session"
)

type CheckoutResponse struct {
	OrderID  uuid.UUID    `json:"order_id"`
	Total    money.Money  `json:"total"`
	Discount money.Money  `json:"discount"`
	Status   order.Status `json:"status"`
}

type OrderHandler struct {
	orders   order.Service
	checkout checkout.Service
	sessions session.Store
}

func NewOrderHandler(orders order.Service, co checkout.Service, sessions session.Store) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: co, sessions: sessions}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handleCheckout)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Post("/orders/{id}/return", h.handleRequestReturn)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	code, err := h.sessions.CouponCode(ctx, actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to place order")
		return
	}

	result, err := h.checkout.Checkout(ctx, actor.UserID, code)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to place order")
		return
	}

	// The order is committed; a failed session cleanup only leaves a stale code.
	if code != "" {
		if err := h.sessions.ClearCouponCode(ctx, actor.UserID); err != nil {
			log.Error().Err(err).Stringer("user_id", actor.UserID).Msg("Failed to clear session coupon after checkout")
		}
	}

	respondWithJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:  result.Order.ID,
		Total:    result.Order.Total,
		Discount: result.Order.Discount,
		Status:   result.Order.Status,
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListByOwner(r.Context(), actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleRequestReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.RequestReturn(r.Context(), actor.UserID, id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to request return")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}
