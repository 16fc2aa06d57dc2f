package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/stock"
)

var ErrForbidden = errors.New("cart line belongs to another user")

// ProductReader is the part of the catalog the cart needs.
type ProductReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service interface {
	Lines(ctx context.Context, owner uuid.UUID) ([]Line, error)
	AddItem(ctx context.Context, owner, productID uuid.UUID, quantity int) (*Line, error)
	// UpdateQuantity sets the line quantity. A quantity <= 0 removes the line
	// and returns a nil line.
	UpdateQuantity(ctx context.Context, owner, lineID uuid.UUID, quantity int) (*Line, error)
	RemoveItem(ctx context.Context, owner, lineID uuid.UUID) error
}

type service struct {
	repo     Repository
	products ProductReader
}

func NewService(repo Repository, products ProductReader) Service {
	return &service{repo: repo, products: products}
}

func (s *service) Lines(ctx context.Context, owner uuid.UUID) ([]Line, error) {
	lines, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", owner).Msg("service: failed to load cart")
		return nil, fmt.Errorf("service: failed to load cart: %w", err)
	}
	return lines, nil
}

func (s *service) AddItem(ctx context.Context, owner, productID uuid.UUID, quantity int) (*Line, error) {
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	line, err := s.repo.Add(ctx, owner, productID, quantity)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", owner).Stringer("product_id", productID).Msg("service: failed to add cart line")
		return nil, fmt.Errorf("service: failed to add cart line: %w", err)
	}
	line.Product = *product

	log.Info().Stringer("user_id", owner).Stringer("product_id", productID).Int("quantity", line.Quantity).Msg("service: cart line added")
	return line, nil
}

func (s *service) UpdateQuantity(ctx context.Context, owner, lineID uuid.UUID, quantity int) (*Line, error) {
	line, err := s.ownedLine(ctx, owner, lineID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return nil, s.delete(ctx, line)
	}

	line.Quantity = quantity
	if err := stock.Validate([]stock.Demand{line.Demand()}); err != nil {
		log.Warn().Err(err).Stringer("line_id", lineID).Msg("service: cart quantity exceeds stock")
		return nil, err
	}

	if err := s.repo.UpdateQuantity(ctx, lineID, quantity); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to update cart line")
		return nil, fmt.Errorf("service: failed to update cart line: %w", err)
	}
	return line, nil
}

func (s *service) RemoveItem(ctx context.Context, owner, lineID uuid.UUID) error {
	line, err := s.ownedLine(ctx, owner, lineID)
	if err != nil {
		return err
	}
	return s.delete(ctx, line)
}

func (s *service) ownedLine(ctx context.Context, owner, lineID uuid.UUID) (*Line, error) {
	line, err := s.repo.GetByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", lineID).Msg("service: failed to fetch cart line")
		return nil, fmt.Errorf("service: failed to fetch cart line: %w", err)
	}
	if line.UserID != owner {
		log.Warn().Stringer("line_id", lineID).Stringer("user_id", owner).Msg("service: cart line owned by another user")
		return nil, ErrForbidden
	}
	return line, nil
}

func (s *service) delete(ctx context.Context, line *Line) error {
	if err := s.repo.Delete(ctx, line.ID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		log.Error().Err(err).Stringer("line_id", line.ID).Msg("service: failed to delete cart line")
		return fmt.Errorf("service: failed to delete cart line: %w", err)
	}
	log.Info().Stringer("line_id", line.ID).Stringer("user_id", line.UserID).Msg("service: cart line removed")
	return nil
}
