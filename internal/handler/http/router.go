package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
)

type Handlers struct {
	Auth    *AuthHandler
	Catalog *CatalogHandler
	Cart    *CartHandler
	Orders  *OrderHandler
	Admin   *AdminHandler
}

// Authenticator verifies the bearer token and stores the identity.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

func NewRouter(h Handlers, authn Authenticator) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Auth.RegisterRoutes(router)
	h.Catalog.RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(authn.Authenticate)

		h.Auth.RegisterAccountRoutes(r)
		h.Cart.RegisterRoutes(r)
		h.Orders.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleSeller, auth.RoleAdmin))
			h.Catalog.RegisterSellerRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			h.Admin.RegisterRoutes(r)
		})
	})

	return router
}
