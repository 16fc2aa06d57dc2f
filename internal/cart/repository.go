package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLineNotFound = errors.New("cart line not found")

type Repository interface {
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]Line, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Line, error)
	Add(ctx context.Context, owner, productID uuid.UUID, quantity int) (*Line, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// SelectLines selects cart lines joined with their products in ScanLine order.
const SelectLines = `
	SELECT cl.id, cl.user_id, cl.product_id, cl.quantity, cl.added_at,
	       p.id, p.seller_id, p.name, p.description, p.price, p.stock, p.category, p.image_url, p.created_at, p.updated_at
	FROM cart_lines cl
	JOIN products p ON p.id = cl.product_id
`

// ScanLine reads one row produced by SelectLines.
func ScanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.ProductID,
		&l.Quantity,
		&l.AddedAt,
		&l.Product.ID,
		&l.Product.SellerID,
		&l.Product.Name,
		&l.Product.Description,
		&l.Product.Price,
		&l.Product.Stock,
		&l.Product.Category,
		&l.Product.ImageURL,
		&l.Product.CreatedAt,
		&l.Product.UpdatedAt,
	)
	return l, err
}

func (r *postgresRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Line, error) {
	rows, err := r.db.Query(ctx, SelectLines+` WHERE cl.user_id = $1 ORDER BY cl.added_at, cl.id`, owner)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart lines for user %s: %w", owner, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		l, err := ScanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line for user %s: %w", owner, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating cart lines for user %s: %w", owner, err)
	}
	return lines, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Line, error) {
	l, err := ScanLine(r.db.QueryRow(ctx, SelectLines+` WHERE cl.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart line %s: %w", id, err)
	}
	return &l, nil
}

// Add inserts a line or, when the owner already holds the product, increments
// the existing quantity.
func (r *postgresRepository) Add(ctx context.Context, owner, productID uuid.UUID, quantity int) (*Line, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart line ID: %w", err)
	}

	query := `
		INSERT INTO cart_lines (id, user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity, added_at
	`
	var l Line
	err = r.db.QueryRow(ctx, query, id, owner, productID, quantity, time.Now().UTC()).
		Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to upsert cart line: %w", err)
	}
	return &l, nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE cart_lines SET quantity = $1 WHERE id = $2`, quantity, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart line %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart line %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}
