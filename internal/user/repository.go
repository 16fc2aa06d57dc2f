package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("email already exists")
)

type Repository interface {
	Create(ctx context.Context, u *User) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	// Delete removes the user and everything that references them in one
	// transaction, following deleteSteps.
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *postgresRepository) Create(ctx context.Context, u *User) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate user ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.Exec(ctx, query, id, u.Name, u.Email, u.PasswordHash, string(u.Role), now, now); err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrEmailExists
		}
		return uuid.Nil, fmt.Errorf("repository: failed to insert user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %s: %w", id, err)
	}
	return u, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by email: %w", err)
	}
	return u, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating users: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, role = $4, updated_at = $5
		WHERE id = $6
	`
	cmdTag, err := r.db.Exec(ctx, query, u.Name, u.Email, u.PasswordHash, string(u.Role), u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to update user %s: %w", u.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type deleteStep struct {
	name  string
	query string
}

// deleteSteps run in order; each takes the user id as $1. Products that an
// order line still references are detached rather than deleted.
var deleteSteps = []deleteStep{
	{name: "own_cart_lines", query: `DELETE FROM cart_lines WHERE user_id = $1`},
	{name: "cart_lines_of_own_products", query: `
		DELETE FROM cart_lines
		WHERE product_id IN (SELECT id FROM products WHERE seller_id = $1)`},
	{name: "own_order_lines", query: `
		DELETE FROM order_lines
		WHERE order_id IN (SELECT id FROM orders WHERE user_id = $1)`},
	{name: "own_orders", query: `DELETE FROM orders WHERE user_id = $1`},
	{name: "unreferenced_products", query: `
		DELETE FROM products p
		WHERE p.seller_id = $1
		  AND NOT EXISTS (SELECT 1 FROM order_lines ol WHERE ol.product_id = p.id)`},
	{name: "detach_referenced_products", query: `
		UPDATE products SET seller_id = NULL, stock = 0, updated_at = NOW()
		WHERE seller_id = $1`},
	{name: "user", query: `DELETE FROM users WHERE id = $1`},
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", id).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", id).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit user delete: %w", commitErr)
		}
	}()

	var cmdTag pgconn.CommandTag
	for _, step := range deleteSteps {
		cmdTag, err = tx.Exec(ctx, step.query, id)
		if err != nil {
			return fmt.Errorf("repository: user delete step %s failed: %w", step.name, err)
		}
		log.Debug().Stringer("user_id", id).Str("step", step.name).Int64("rows", cmdTag.RowsAffected()).Msg("repository: user delete step")
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
