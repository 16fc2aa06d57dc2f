package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type CouponRequest struct {
	Code   string          `json:"code" validate:"required,max=64"`
	Kind   string          `json:"kind" validate:"required,oneof=percentage fixed"`
	Value  decimal.Decimal `json:"value"`
	Active *bool           `json:"active,omitempty"`
}

func (req CouponRequest) toCoupon() *coupon.Coupon {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &coupon.Coupon{
		Code:   req.Code,
		Kind:   coupon.Kind(req.Kind),
		Value:  req.Value,
		Active: active,
	}
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=customer seller admin"`
}

type UpdateUserRequest struct {
	Name     string  `json:"name,omitempty" validate:"omitempty,min=2"`
	Email    string  `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string  `json:"role,omitempty" validate:"omitempty,oneof=customer seller admin"`
}

// AdminHandler serves the back-office routes. The router restricts it to admins.
type AdminHandler struct {
	orders   order.Service
	coupons  coupon.Service
	users    user.Service
	validate *validator.Validate
}

func NewAdminHandler(orders order.Service, coupons coupon.Service, users user.Service) *AdminHandler {
	return &AdminHandler{orders: orders, coupons: coupons, users: users, validate: validator.New()}
}

func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Get("/admin/orders", h.handleListOrders)
	router.Put("/admin/orders/{id}/status", h.handleUpdateStatus)

	router.Get("/admin/coupons", h.handleListCoupons)
	router.Post("/admin/coupons", h.handleCreateCoupon)
	router.Put("/admin/coupons/{id}", h.handleUpdateCoupon)
	router.Delete("/admin/coupons/{id}", h.handleDeleteCoupon)

	router.Get("/admin/users", h.handleListUsers)
	router.Post("/admin/users", h.handleCreateUser)
	router.Put("/admin/users/{id}", h.handleUpdateUser)
	router.Delete("/admin/users/{id}", h.handleDeleteUser)
}

func (h *AdminHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list coupons")
		return
	}
	respondWithJSON(w, http.StatusOK, coupons)
}

func (h *AdminHandler) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.coupons.Create(r.Context(), req.toCoupon())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create coupon")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req CouponRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	c := req.toCoupon()
	c.ID = id
	if err := h.coupons.Update(r.Context(), c); err != nil {
		respondWithServiceError(w, r, err, "Failed to update coupon")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) handleDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.coupons.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete coupon")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list users")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.users.CreateUser(r.Context(), &user.User{
		Name:  req.Name,
		Email: req.Email,
		Role:  auth.Role(req.Role),
	}, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create user")
		return
	}
	respondWithJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *AdminHandler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	password := ""
	if req.Password != nil {
		password = *req.Password
	}
	updated, err := h.users.UpdateUser(r.Context(), &user.User{
		ID:    id,
		Name:  req.Name,
		Email: req.Email,
		Role:  auth.Role(req.Role),
	}, password)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update user")
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
