package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInUse    = errors.New("product is referenced by existing orders")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	CategoryPaths(ctx context.Context) ([]string, error)
	Recommend(ctx context.Context, topCategories []string, exclude []uuid.UUID, limit int) ([]Product, error)
	Newest(ctx context.Context, limit int) ([]Product, error)
	BestSellers(ctx context.Context, limit int) ([]Product, error)
	MostStocked(ctx context.Context, limit int) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	Category string     // top-level category prefix, empty for all
	SellerID *uuid.UUID // nil for all sellers
	Query    string     // case-insensitive substring of name, description or category
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const productColumns = `id, seller_id, name, description, price, stock, category, image_url, created_at, updated_at`

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", id, err)
	}
	return &p, nil
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Product, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Category != "" {
		conditions = append(conditions, "starts_with(category, :category)")
		args["category"] = f.Category
	}
	if f.SellerID != nil {
		conditions = append(conditions, "seller_id = :seller_id")
		args["seller_id"] = *f.SellerID
	}
	if f.Query != "" {
		conditions = append(conditions, "(name ILIKE :query OR description ILIKE :query OR category ILIKE :query)")
		args["query"] = "%" + likeEscaper.Replace(f.Query) + "%"
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	nstmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to prepare product list: %w", err)
	}
	defer nstmt.Close()

	products := make([]Product, 0)
	if err := nstmt.SelectContext(ctx, &products, args); err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) CategoryPaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, `SELECT DISTINCT category FROM products`); err != nil {
		return nil, fmt.Errorf("repository: failed to select categories: %w", err)
	}
	return paths, nil
}

func (r *postgresRepository) Recommend(ctx context.Context, topCategories []string, exclude []uuid.UUID, limit int) ([]Product, error) {
	products := make([]Product, 0)
	if len(topCategories) == 0 || limit <= 0 {
		return products, nil
	}

	prefixes := make([]string, 0, len(topCategories))
	args := make([]interface{}, 0, len(topCategories)+2)
	for _, c := range topCategories {
		prefixes = append(prefixes, "starts_with(category, ?)")
		args = append(args, c)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE (` + strings.Join(prefixes, " OR ") + `)`
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, exclude)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build recommendation query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select recommendations: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) Newest(ctx context.Context, limit int) ([]Product, error) {
	products := make([]Product, 0, limit)
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, name LIMIT $1`
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to select newest products: %w", err)
	}
	return products, nil
}

// BestSellers ranks products by units sold on orders that were not cancelled.
func (r *postgresRepository) BestSellers(ctx context.Context, limit int) ([]Product, error) {
	products := make([]Product, 0, limit)
	query := `
		SELECT ` + productColumns + ` FROM products
		JOIN (
			SELECT ol.product_id, SUM(ol.quantity) AS sold
			FROM order_lines ol JOIN orders o ON o.id = ol.order_id
			WHERE o.status <> 'CANCELLED'
			GROUP BY ol.product_id
		) sales ON sales.product_id = products.id
		ORDER BY sales.sold DESC, name
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to select best sellers: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) MostStocked(ctx context.Context, limit int) ([]Product, error) {
	products := make([]Product, 0, limit)
	query := `SELECT ` + productColumns + ` FROM products WHERE stock > 0 ORDER BY stock DESC, name LIMIT $1`
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to select featured products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, seller_id, name, description, price, stock, category, image_url, created_at, updated_at)
		VALUES (:id, :seller_id, :name, :description, :price, :stock, :category, :image_url, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = :name, description = :description, price = :price, stock = :stock,
		    category = :category, image_url = :image_url, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes the product and any cart lines holding it. Products that
// appear on an order line are kept and ErrProductInUse is returned.
func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Stringer("product_id", id).Msg("Failed to rollback product delete")
			}
		}
	}()

	var exists, referenced bool
	err = tx.QueryRowxContext(ctx, `
		SELECT true, EXISTS (SELECT 1 FROM order_lines WHERE product_id = p.id)
		FROM products p WHERE p.id = $1 FOR UPDATE
	`, id).Scan(&exists, &referenced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to check product references: %w", err)
	}
	if referenced {
		return ErrProductInUse
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to delete cart lines for product %s: %w", id, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository: failed to commit product delete: %w", err)
	}
	return nil
}
