package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/infrastructure/postgres"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/postgres"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/test/integration"
)

func TestFailureLog(t *testing.T) {
	pgURL := integration.Postgres(t)
	require.NoError(t, orderpg.RunMigrations(pgURL))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	fl := postgres.NewFailureLog(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)

	require.NoError(t, fl.Record(ctx, application.WebhookFailure{
		Reference:     "MST-1",
		TransactionID: "tx-1",
		Event:         "transaction.updated",
		Status:        "APPROVED",
		Payload:       []byte(`{"event":"transaction.updated"}`),
		Err:           "order not found",
		ReceivedAt:    time.Now(),
	}))
	// payloads that are not valid UTF-8 are still kept
	require.NoError(t, fl.Record(ctx, application.WebhookFailure{
		Payload:    []byte{0xff, 0xfe, '{'},
		Err:        "malformed payload",
		ReceivedAt: time.Now(),
	}))

	failures, err := fl.Unresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "malformed payload", failures[0].Err)
	assert.Equal(t, "MST-1", failures[1].Reference)
	assert.Equal(t, "APPROVED", failures[1].Status)

	require.NoError(t, fl.Resolve(ctx, failures[1].ID))
	// a second resolve finds nothing left to mark
	assert.ErrorIs(t, fl.Resolve(ctx, failures[1].ID), postgres.ErrFailureNotFound)
	assert.ErrorIs(t, fl.Resolve(ctx, 999999), postgres.ErrFailureNotFound)

	failures, err = fl.Unresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "malformed payload", failures[0].Err)

	var resolved int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM webhook_failures WHERE resolved_at IS NOT NULL AND reference = 'MST-1'`).Scan(&resolved))
	assert.Equal(t, 1, resolved)
}
