package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// IntentStore keeps pending intents in Redis so every instance behind the
// load balancer sees the same intents and a restart loses none of them.
// Expiry is delegated to the key TTL.
type IntentStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

func NewIntentStore(rdb *goredis.Client) *IntentStore {
	return &IntentStore{rdb: rdb, prefix: "intent", now: time.Now}
}

func (s *IntentStore) key(reference string) string {
	return s.prefix + ":" + reference
}

func (s *IntentStore) Put(ctx context.Context, p domain.PendingIntent) error {
	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: intent %s already expired", domain.ErrValidation, p.Reference)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(p.Reference), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("store intent: %w", err)
	}
	if !ok {
		return domain.ErrReferenceCollision
	}
	return nil
}

func (s *IntentStore) Get(ctx context.Context, reference string) (domain.PendingIntent, error) {
	b, err := s.rdb.Get(ctx, s.key(reference)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.PendingIntent{}, domain.ErrNotFoundOrExpired
	}
	if err != nil {
		return domain.PendingIntent{}, fmt.Errorf("load intent: %w", err)
	}
	var p domain.PendingIntent
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.PendingIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	// the key TTL and ExpiresAt can drift by a clock tick
	if p.Expired(s.now()) {
		return domain.PendingIntent{}, domain.ErrNotFoundOrExpired
	}
	return p, nil
}

func (s *IntentStore) Delete(ctx context.Context, reference string) error {
	return s.rdb.Del(ctx, s.key(reference)).Err()
}

// Sweep is a no-op; Redis expires keys itself.
func (s *IntentStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
