package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
)

var ErrFailureNotFound = errors.New("webhook failure not found or already resolved")

// FailureLog persists webhook deliveries that were acknowledged to the
// gateway but could not be applied, so an operator can replay them.
type FailureLog struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewFailureLog(log *slog.Logger, pool *pgxpool.Pool) *FailureLog {
	return &FailureLog{log: log, pool: pool}
}

func (f *FailureLog) Record(ctx context.Context, w application.WebhookFailure) error {
	_, err := f.pool.Exec(ctx, `INSERT INTO webhook_failures (reference, transaction_id, event, status, payload, error, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		w.Reference, w.TransactionID, w.Event, w.Status, strings.ToValidUTF8(string(w.Payload), "�"), w.Err, w.ReceivedAt)
	if err != nil {
		return fmt.Errorf("record webhook failure: %w", err)
	}
	return nil
}

type UnresolvedFailure struct {
	ID        int64
	Reference string
	Event     string
	Status    string
	Err       string
}

// Unresolved lists failures an operator has not yet marked resolved,
// newest first.
func (f *FailureLog) Unresolved(ctx context.Context, limit int) ([]UnresolvedFailure, error) {
	rows, err := f.pool.Query(ctx, `SELECT id, reference, event, status, error FROM webhook_failures
		WHERE resolved_at IS NULL ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnresolvedFailure
	for rows.Next() {
		var u UnresolvedFailure
		if err := rows.Scan(&u.ID, &u.Reference, &u.Event, &u.Status, &u.Err); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Resolve marks a failure as handled so it no longer shows in Unresolved.
func (f *FailureLog) Resolve(ctx context.Context, id int64) error {
	tag, err := f.pool.Exec(ctx, `UPDATE webhook_failures SET resolved_at = now()
		WHERE id = $1 AND resolved_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("resolve webhook failure %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve webhook failure %d: %w", id, ErrFailureNotFound)
	}
	f.log.Info("webhook failure resolved", "id", id)
	return nil
}
