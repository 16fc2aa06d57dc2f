package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
)

// RecommendationLimit caps the products suggested on the cart view.
const RecommendationLimit = 4

// HighlightLimit caps each list on the storefront landing page.
const HighlightLimit = 10

var (
	ErrForbidden      = errors.New("not allowed to manage this product")
	ErrInvalidProduct = errors.New("product name and category are required")
	ErrNegativePrice  = errors.New("product price cannot be negative")
	ErrNegativeStock  = errors.New("product stock cannot be negative")
)

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, category string) ([]Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
	Highlights(ctx context.Context) (*Highlights, error)
	ListOwnProducts(ctx context.Context, actor auth.Identity) ([]Product, error)
	TopCategories(ctx context.Context) ([]string, error)
	Recommend(ctx context.Context, inCart []Product) ([]Product, error)
	CreateProduct(ctx context.Context, actor auth.Identity, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, actor auth.Identity, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, actor auth.Identity, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context, category string) ([]Product, error) {
	return s.repo.List(ctx, ListFilter{Category: strings.TrimSpace(category)})
}

// Search matches query against product names, descriptions and categories.
// A blank query matches nothing.
func (s *service) Search(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Product{}, nil
	}
	products, err := s.repo.List(ctx, ListFilter{Query: query})
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("service: failed to search products")
		return nil, fmt.Errorf("service: failed to search products: %w", err)
	}
	return products, nil
}

func (s *service) Highlights(ctx context.Context) (*Highlights, error) {
	recent, err := s.repo.Newest(ctx, HighlightLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load newest products")
		return nil, fmt.Errorf("service: failed to load highlights: %w", err)
	}
	bestSellers, err := s.repo.BestSellers(ctx, HighlightLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load best sellers")
		return nil, fmt.Errorf("service: failed to load highlights: %w", err)
	}
	featured, err := s.repo.MostStocked(ctx, HighlightLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load featured products")
		return nil, fmt.Errorf("service: failed to load highlights: %w", err)
	}
	return &Highlights{Recent: recent, BestSellers: bestSellers, Featured: featured}, nil
}

// ListOwnProducts returns the seller's listings; admins see the whole catalog.
func (s *service) ListOwnProducts(ctx context.Context, actor auth.Identity) ([]Product, error) {
	if !actor.CanSell() {
		return nil, ErrForbidden
	}
	if actor.IsAdmin() {
		return s.repo.List(ctx, ListFilter{})
	}
	return s.repo.List(ctx, ListFilter{SellerID: &actor.UserID})
}

func (s *service) TopCategories(ctx context.Context) ([]string, error) {
	paths, err := s.repo.CategoryPaths(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(paths))
	tops := make([]string, 0, len(paths))
	for _, path := range paths {
		top := TopCategory(path)
		if top == "" {
			continue
		}
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		tops = append(tops, top)
	}
	sort.Strings(tops)
	return tops, nil
}

// Recommend suggests up to RecommendationLimit products sharing a top-level
// category with inCart, never one already in the cart.
func (s *service) Recommend(ctx context.Context, inCart []Product) ([]Product, error) {
	if len(inCart) == 0 {
		return []Product{}, nil
	}

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	exclude := make([]uuid.UUID, 0, len(inCart))
	for _, p := range inCart {
		exclude = append(exclude, p.ID)
		top := p.TopCategory()
		if top == "" {
			continue
		}
		if _, ok := seen[top]; !ok {
			seen[top] = struct{}{}
			categories = append(categories, top)
		}
	}
	sort.Strings(categories)

	products, err := s.repo.Recommend(ctx, categories, exclude, RecommendationLimit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load recommendations")
		return nil, fmt.Errorf("service: failed to load recommendations: %w", err)
	}
	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, actor auth.Identity, p *Product) (*Product, error) {
	if !actor.CanSell() {
		return nil, ErrForbidden
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	sellerID := actor.UserID
	p.ID = uuid.Nil
	p.SellerID = &sellerID

	if err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Stringer("seller_id", actor.UserID).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Stringer("seller_id", actor.UserID).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, actor auth.Identity, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	current, err := s.authorize(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}

	current.Name = p.Name
	current.Description = p.Description
	current.Price = p.Price
	current.Stock = p.Stock
	current.Category = p.Category
	current.ImageURL = p.ImageURL

	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}
	return current, nil
}

func (s *service) DeleteProduct(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrProductInUse) {
			log.Warn().Err(err).Stringer("product_id", id).Msg("service: product delete rejected")
			return err
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Stringer("product_id", id).Stringer("actor_id", actor.UserID).Msg("service: product deleted")
	return nil
}

func (s *service) authorize(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Product, error) {
	if !actor.CanSell() {
		return nil, ErrForbidden
	}
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !current.OwnedBy(actor.UserID) {
		log.Warn().Stringer("product_id", id).Stringer("actor_id", actor.UserID).Msg("service: seller does not own product")
		return nil, ErrForbidden
	}
	return current, nil
}

func validateProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" || p.Category == "" {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}
