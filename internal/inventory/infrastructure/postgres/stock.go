package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/domain"
)

// Tx is the part of pgx.Tx the stock writer needs. Stock never opens its
// own transaction; it always runs inside the caller's.
type Tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Stock struct {
	log *slog.Logger
}

func NewStock(log *slog.Logger) *Stock {
	return &Stock{log: log}
}

// Check locks every row the lines touch and verifies availability without
// changing counters.
func (s *Stock) Check(ctx context.Context, tx Tx, lines []domain.Line) error {
	return s.apply(ctx, tx, lines, domain.Strict, false)
}

// Decrement locks, checks and decrements. With AllowOversell, missing or
// short items are logged instead of aborting.
func (s *Stock) Decrement(ctx context.Context, tx Tx, lines []domain.Line, policy domain.Policy) error {
	return s.apply(ctx, tx, lines, policy, true)
}

func (s *Stock) apply(ctx context.Context, tx Tx, lines []domain.Line, policy domain.Policy, decrement bool) error {
	for _, l := range domain.Consolidate(lines) {
		level, err := s.lock(ctx, tx, l)
		if errors.Is(err, domain.ErrProductNotFound) && policy == domain.AllowOversell {
			s.log.Warn("stock item vanished, skipping decrement", "product_id", l.ProductID, "variant_id", l.VariantID)
			continue
		}
		if err != nil {
			return err
		}

		if !level.Admits(l.Quantity) {
			if policy == domain.Strict {
				return fmt.Errorf("%w: product %s variant %s: have %d, want %d",
					domain.ErrInsufficientStock, l.ProductID, l.VariantID, level.Quantity, l.Quantity)
			}
			s.log.Warn("overselling paid order item",
				"product_id", l.ProductID, "variant_id", l.VariantID, "available", level.Quantity, "requested", l.Quantity)
		}

		if !decrement || !level.TrackQuantity {
			continue
		}
		if err := s.decrement(ctx, tx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stock) lock(ctx context.Context, tx Tx, l domain.Line) (domain.Level, error) {
	var lv domain.Level
	if !validID(l.ProductID) || (l.VariantID != "" && !validID(l.VariantID)) {
		return lv, fmt.Errorf("%w: product %q variant %q", domain.ErrProductNotFound, l.ProductID, l.VariantID)
	}
	var row pgx.Row
	if l.VariantID != "" {
		row = tx.QueryRow(ctx, `
			SELECT v.quantity, p.track_quantity, p.continue_selling
			FROM product_variants v
			JOIN products p ON p.id = v.product_id
			WHERE v.id = $1 AND v.product_id = $2
			FOR UPDATE OF v`, l.VariantID, l.ProductID)
	} else {
		row = tx.QueryRow(ctx, `
			SELECT quantity, track_quantity, continue_selling
			FROM products
			WHERE id = $1
			FOR UPDATE`, l.ProductID)
	}
	err := row.Scan(&lv.Quantity, &lv.TrackQuantity, &lv.ContinueSelling)
	if errors.Is(err, pgx.ErrNoRows) {
		return lv, fmt.Errorf("%w: product %s variant %s", domain.ErrProductNotFound, l.ProductID, l.VariantID)
	}
	if err != nil {
		return lv, fmt.Errorf("lock stock row: %w", err)
	}
	return lv, nil
}

func (s *Stock) decrement(ctx context.Context, tx Tx, l domain.Line) error {
	var err error
	if l.VariantID != "" {
		_, err = tx.Exec(ctx, `UPDATE product_variants SET quantity = quantity - $1, updated_at = now() WHERE id = $2`, l.Quantity, l.VariantID)
	} else {
		_, err = tx.Exec(ctx, `UPDATE products SET quantity = quantity - $1, updated_at = now() WHERE id = $2`, l.Quantity, l.ProductID)
	}
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return nil
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
