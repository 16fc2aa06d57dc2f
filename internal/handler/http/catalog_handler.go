package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/money"
)

type ProductRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description"`
	Price       money.Money `json:"price"`
	Stock       int         `json:"stock" validate:"min=0"`
	Category    string      `json:"category" validate:"required"`
	ImageURL    *string     `json:"image_url,omitempty" validate:"omitempty,url"`
}

func (req ProductRequest) toProduct() *catalog.Product {
	return &catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
}

type CatalogHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service, validate: validator.New()}
}

// RegisterRoutes mounts the public browsing routes.
func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/search", h.handleSearchProducts)
	router.Get("/products/highlights", h.handleHighlights)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)
}

// RegisterSellerRoutes mounts product management. The router is expected to
// authenticate the caller; ownership is checked by the catalog service.
func (h *CatalogHandler) RegisterSellerRoutes(router chi.Router) {
	router.Get("/seller/products", h.handleListOwnProducts)
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to search products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleHighlights(w http.ResponseWriter, r *http.Request) {
	highlights, err := h.service.Highlights(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to load highlights")
		return
	}
	respondWithJSON(w, http.StatusOK, highlights)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.TopCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleListOwnProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListOwnProducts(r.Context(), actor)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), actor, req.toProduct())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := req.toProduct()
	p.ID = id
	updated, err := h.service.UpdateProduct(r.Context(), actor, p)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
