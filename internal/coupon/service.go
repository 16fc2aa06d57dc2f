package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCoupon means the code does not resolve to an active coupon.
	ErrInvalidCoupon = errors.New("coupon is invalid or inactive")
	ErrInvalidValue  = errors.New("coupon value is out of range")
	ErrInvalidKind   = errors.New("coupon kind must be percentage or fixed")
	ErrCodeRequired  = errors.New("coupon code is required")
)

var maxPercentage = decimal.NewFromInt(100)

type Service interface {
	GetActive(ctx context.Context, code string) (*Coupon, error)
	ListActive(ctx context.Context) ([]Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) (*Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetActive(ctx context.Context, code string) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrInvalidCoupon
		}
		log.Error().Err(err).Str("code", code).Msg("service: failed to fetch coupon")
		return nil, fmt.Errorf("service: failed to fetch coupon: %w", err)
	}

	if !c.Active {
		return nil, ErrInvalidCoupon
	}
	return c, nil
}

func (s *service) ListActive(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx, true)
}

func (s *service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx, false)
}

func (s *service) Create(ctx context.Context, c *Coupon) (*Coupon, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	c.ID = uuid.Nil

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, ErrCodeExists
		}
		log.Error().Err(err).Str("code", c.Code).Msg("service: failed to create coupon")
		return nil, fmt.Errorf("service: failed to create coupon: %w", err)
	}

	log.Info().Stringer("coupon_id", c.ID).Str("code", c.Code).Msg("service: coupon created")
	return c, nil
}

func (s *service) Update(ctx context.Context, c *Coupon) error {
	if err := validate(c); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrCouponNotFound) || errors.Is(err, ErrCodeExists) {
			return err
		}
		log.Error().Err(err).Stringer("coupon_id", c.ID).Msg("service: failed to update coupon")
		return fmt.Errorf("service: failed to update coupon: %w", err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return ErrCouponNotFound
		}
		log.Error().Err(err).Stringer("coupon_id", id).Msg("service: failed to delete coupon")
		return fmt.Errorf("service: failed to delete coupon: %w", err)
	}
	return nil
}

func validate(c *Coupon) error {
	c.Code = strings.TrimSpace(c.Code)
	if c.Code == "" {
		return ErrCodeRequired
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	if c.Value.IsNegative() {
		return ErrInvalidValue
	}
	if c.Kind == KindPercentage && c.Value.GreaterThan(maxPercentage) {
		return ErrInvalidValue
	}
	return nil
}
