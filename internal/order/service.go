package order

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
)

// allowedTransitions governs admin status changes. RETURN_REQUESTED is only
// reachable through RequestReturn.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPlaced:    true,
		StatusCancelled: true,
	},
	StatusPlaced: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusReturnRequested: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

var returnable = map[Status]bool{
	StatusPlaced:    true,
	StatusCompleted: true,
}

var (
	ErrForbidden               = errors.New("order belongs to another user")
	ErrReturnNotAllowed        = errors.New("order cannot be returned in its current status")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type Service interface {
	GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	RequestReturn(ctx context.Context, owner, orderID uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error)
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

func (s *service) GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error) {
	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && o.UserID != actor.UserID {
		log.Warn().Stringer("order_id", id).Stringer("user_id", actor.UserID).Msg("service: order owned by another user")
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, owner)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", owner).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order with pending work first.
func (s *service) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch orders in repository")
		return nil, fmt.Errorf("service: failed to fetch orders: %w", err)
	}
	SortForAdmin(orders)
	return orders, nil
}

// SortForAdmin orders RETURN_REQUESTED first, then PENDING, then everything
// else, newest first within each group.
func SortForAdmin(orders []Order) {
	rank := func(s Status) int {
		switch s {
		case StatusReturnRequested:
			return 0
		case StatusPending:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		ri, rj := rank(orders[i].Status), rank(orders[j].Status)
		if ri != rj {
			return ri < rj
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *service) RequestReturn(ctx context.Context, owner, orderID uuid.UUID) (*Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != owner {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", owner).Msg("service: return requested by non-owner")
		return nil, ErrForbidden
	}
	if !returnable[o.Status] {
		log.Warn().Stringer("order_id", orderID).Stringer("status", o.Status).Msg("service: order not returnable")
		return nil, ErrReturnNotAllowed
	}

	if err := s.setStatus(ctx, o, StatusReturnRequested); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, ErrReturnNotAllowed
		}
		return nil, err
	}
	return o, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error) {
	if !newStatus.Valid() {
		return nil, ErrInvalidStatus
	}

	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return o, nil
	}

	if !allowedTransitions[o.Status][newStatus] {
		log.Warn().
			Stringer("order_id", o.ID).
			Stringer("current_status", o.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, o.Status, newStatus)
	}

	if err := s.setStatus(ctx, o, newStatus); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatusTransition, err)
		}
		return nil, err
	}
	return o, nil
}

func (s *service) get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) setStatus(ctx context.Context, o *Order, to Status) error {
	from := o.Status
	if err := s.orderRepo.UpdateStatus(ctx, o.ID, from, to); err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStatusChanged) {
			log.Warn().Err(err).Stringer("order_id", o.ID).Stringer("new_status", to).Msg("service: order changed during status update")
			return err
		}
		log.Error().Err(err).Stringer("order_id", o.ID).Stringer("new_status", to).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	o.Status = to
	log.Info().Stringer("order_id", o.ID).Stringer("old_status", from).Stringer("new_status", to).Msg("service: order status updated successfully")
	return nil
}
