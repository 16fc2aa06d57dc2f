package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrCodeExists     = errors.New("coupon code already exists")
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, activeOnly bool) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const couponColumns = `id, code, kind, value, active, created_at, updated_at`

func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := r.db.GetContext(ctx, &c, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("repository: failed to select coupon by code: %w", err)
	}
	return &c, nil
}

func (r *postgresRepository) List(ctx context.Context, activeOnly bool) ([]Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	coupons := make([]Coupon, 0)
	if err := r.db.SelectContext(ctx, &coupons, query); err != nil {
		return nil, fmt.Errorf("repository: failed to list coupons: %w", err)
	}
	return coupons, nil
}

func (r *postgresRepository) Create(ctx context.Context, c *Coupon) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate coupon ID: %w", err)
		}
		c.ID = id
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO coupons (id, code, kind, value, active, created_at, updated_at)
		VALUES (:id, :code, :kind, :value, :active, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("repository: failed to insert coupon: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, c *Coupon) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE coupons
		SET code = :code, kind = :kind, value = :value, active = :active, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("repository: failed to update coupon %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete coupon %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
