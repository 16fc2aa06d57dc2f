package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusChanged means the order left the expected status between read and write.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus moves the order from one status to another and fails with
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Insert writes o and its lines through db, which is normally an open
// transaction. IDs and timestamps are assigned here.
func Insert(ctx context.Context, db DBTX, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (id, user_id, status, total, discount, coupon_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Exec(ctx, queryOrder,
		o.ID,
		o.UserID,
		string(o.Status),
		o.Total,
		o.Discount,
		o.CouponCode,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryLine := `
		INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range o.Lines {
		line := &o.Lines[i]

		lineID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order line ID: %w", err)
		}
		line.ID = lineID
		line.OrderID = o.ID

		if _, err := db.Exec(ctx, queryLine, line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice); err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", o.ID, err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, status, total, discount, coupon_code, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Total,
		&o.Discount,
		&o.CouponCode,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *postgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads the lines of every order with a single query.
func (r *postgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for i := range orders {
		orders[i].Lines = make([]Line, 0)
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}

	query := `
		SELECT ol.id, ol.order_id, ol.product_id, p.name, ol.quantity, ol.unit_price
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = ANY($1)
		ORDER BY ol.order_id, p.name
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order lines: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", to).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("repository: failed to check order %s: %w", id, err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusChanged
	}
	return nil
}
