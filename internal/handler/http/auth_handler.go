package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=customer seller"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// UpdateProfileRequest leaves blank fields unchanged. Role and password have
// their own routes.
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,min=2"`
	Email string `json:"email" validate:"omitempty,email"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type AuthHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewAuthHandler(service user.Service) *AuthHandler {
	return &AuthHandler{service: service, validate: validator.New()}
}

// RegisterRoutes mounts the public account routes.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/register", h.handleRegister)
	router.Post("/auth/login", h.handleLogin)
}

// RegisterAccountRoutes mounts routes that need an authenticated caller.
func (h *AuthHandler) RegisterAccountRoutes(router chi.Router) {
	router.Get("/me", h.handleMe)
	router.Put("/me", h.handleUpdateProfile)
	router.Put("/me/password", h.handleChangePassword)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.Register(r.Context(), &user.User{
		Name:  req.Name,
		Email: req.Email,
		Role:  auth.Role(req.Role),
	}, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to register user")
		return
	}

	respondWithJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	token, u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to log in")
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserResponse(u)})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load account")
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if req.Name == "" && req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), &user.User{ID: id.UserID, Name: req.Name, Email: req.Email}, "")
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithServiceError(w, r, err, "Failed to change password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
