package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by pgx.Tx, so events are written in the caller's
// transaction and become visible only if it commits.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func Insert(ctx context.Context, tx Execer, aggregateType, aggregateID, eventType string, payload any, headers map[string]string, traceparent string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		aggregateType, aggregateID, eventType, body, headers, traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", eventType, err)
	}
	return nil
}
