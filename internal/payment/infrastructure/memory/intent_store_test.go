package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

func newIntent(ref string, now time.Time, ttl time.Duration) domain.PendingIntent {
	return domain.NewPendingIntent(ref, 15000000, "COP", "buyer@example.com", now, ttl)
}

func TestIntentStore_PutGetDelete(t *testing.T) {
	s := NewIntentStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newIntent("MST-1-AAAAAAAA", time.Now(), 15*time.Minute)))

	got, err := s.Get(ctx, "MST-1-AAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(15000000), got.AmountInCents)

	require.NoError(t, s.Delete(ctx, "MST-1-AAAAAAAA"))
	_, err = s.Get(ctx, "MST-1-AAAAAAAA")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestIntentStore_GetUnknown(t *testing.T) {
	s := NewIntentStore()
	_, err := s.Get(context.Background(), "MST-never-prepared")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestIntentStore_PutCollision(t *testing.T) {
	s := NewIntentStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newIntent("REF", time.Now(), time.Minute)))
	err := s.Put(ctx, newIntent("REF", time.Now(), time.Minute))
	assert.ErrorIs(t, err, domain.ErrReferenceCollision)
}

func TestIntentStore_ExpiredIsNotFound(t *testing.T) {
	s := NewIntentStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newIntent("REF", time.Now().Add(-20*time.Minute), 15*time.Minute)))
	_, err := s.Get(ctx, "REF")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)

	// an expired slot may be reused
	assert.NoError(t, s.Put(ctx, newIntent("REF", time.Now(), time.Minute)))
}

func TestIntentStore_Sweep(t *testing.T) {
	s := NewIntentStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, newIntent("old-1", now.Add(-time.Hour), 15*time.Minute)))
	require.NoError(t, s.Put(ctx, newIntent("old-2", now.Add(-16*time.Minute), 15*time.Minute)))
	require.NoError(t, s.Put(ctx, newIntent("fresh", now, 15*time.Minute)))

	n, err := s.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestIntentStore_ConcurrentAccess(t *testing.T) {
	s := NewIntentStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("REF-%d", i)
			_ = s.Put(ctx, newIntent(ref, time.Now(), time.Minute))
			_, _ = s.Get(ctx, ref)
			_, _ = s.Sweep(ctx, time.Now())
			_ = s.Delete(ctx, ref)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}

func TestRunSweeper_RemovesExpired(t *testing.T) {
	s := NewIntentStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Put(ctx, newIntent("old", time.Now().Add(-time.Hour), time.Minute)))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	go RunSweeper(ctx, log, s, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)
}
