package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
)

type postgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, beginErr := s.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("Panic recovered during checkout, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	return fn(ctx, &pgxTx{tx: tx})
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) LockCart(ctx context.Context, owner uuid.UUID) ([]cart.Line, error) {
	rows, err := t.tx.Query(ctx, cart.SelectLines+` WHERE cl.user_id = $1 ORDER BY p.id FOR UPDATE OF cl, p`, owner)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock cart lines for user %s: %w", owner, err)
	}
	defer rows.Close()

	lines := make([]cart.Line, 0)
	for rows.Next() {
		l, err := cart.ScanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan locked cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating locked cart lines: %w", err)
	}
	return lines, nil
}

func (t *pgxTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return order.Insert(ctx, t.tx, o)
}

func (t *pgxTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND stock >= $1
	`, quantity, time.Now().UTC(), productID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to decrement stock for product %s: %w", productID, err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (t *pgxTx) ClearCart(ctx context.Context, lineIDs []uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = ANY($1)`, lineIDs); err != nil {
		return fmt.Errorf("repository: failed to delete %d purchased cart lines: %w", len(lineIDs), err)
	}
	return nil
}
