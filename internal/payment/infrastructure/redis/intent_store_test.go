package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

func setup(t *testing.T) (*IntentStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewIntentStore(rdb), mr
}

func TestIntentStore_PutGet(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()

	p := domain.NewPendingIntent("MST-1-ABCDEF01", 15000000, "COP", "buyer@example.com", time.Now(), 15*time.Minute)
	require.NoError(t, s.Put(ctx, p))

	assert.True(t, mr.Exists("intent:MST-1-ABCDEF01"))
	ttl := mr.TTL("intent:MST-1-ABCDEF01")
	assert.Greater(t, ttl, 14*time.Minute)

	got, err := s.Get(ctx, "MST-1-ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, p.AmountInCents, got.AmountInCents)
	assert.Equal(t, p.CustomerEmail, got.CustomerEmail)
}

func TestIntentStore_Collision(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	p := domain.NewPendingIntent("REF", 100, "COP", "a@b.co", time.Now(), time.Minute)
	require.NoError(t, s.Put(ctx, p))
	assert.ErrorIs(t, s.Put(ctx, p), domain.ErrReferenceCollision)
}

func TestIntentStore_ExpiresWithTTL(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()

	p := domain.NewPendingIntent("REF", 100, "COP", "a@b.co", time.Now(), time.Minute)
	require.NoError(t, s.Put(ctx, p))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "REF")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestIntentStore_UnknownAndDelete(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)

	p := domain.NewPendingIntent("REF", 100, "COP", "a@b.co", time.Now(), time.Minute)
	require.NoError(t, s.Put(ctx, p))
	require.NoError(t, s.Delete(ctx, "REF"))

	_, err = s.Get(ctx, "REF")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestIntentStore_RejectsAlreadyExpired(t *testing.T) {
	s, _ := setup(t)
	p := domain.NewPendingIntent("REF", 100, "COP", "a@b.co", time.Now().Add(-time.Hour), time.Minute)
	assert.ErrorIs(t, s.Put(context.Background(), p), domain.ErrValidation)
}
