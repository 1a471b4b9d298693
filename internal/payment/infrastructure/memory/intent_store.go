package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

// IntentStore keeps pending intents in process memory. It suits a single
// instance; a restart drops in-flight intents, which then fail closed.
type IntentStore struct {
	mu      sync.RWMutex
	intents map[string]domain.PendingIntent
	now     func() time.Time
}

func NewIntentStore() *IntentStore {
	return &IntentStore{
		intents: make(map[string]domain.PendingIntent),
		now:     time.Now,
	}
}

func (s *IntentStore) Put(_ context.Context, p domain.PendingIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.intents[p.Reference]; ok && !existing.Expired(s.now()) {
		return domain.ErrReferenceCollision
	}
	s.intents[p.Reference] = p
	return nil
}

func (s *IntentStore) Get(_ context.Context, reference string) (domain.PendingIntent, error) {
	s.mu.RLock()
	p, ok := s.intents[reference]
	s.mu.RUnlock()

	if !ok || p.Expired(s.now()) {
		return domain.PendingIntent{}, domain.ErrNotFoundOrExpired
	}
	return p, nil
}

func (s *IntentStore) Delete(_ context.Context, reference string) error {
	s.mu.Lock()
	delete(s.intents, reference)
	s.mu.Unlock()
	return nil
}

// Sweep removes intents past their expiry. Candidates are collected under
// the read lock; each delete takes the write lock briefly and re-checks, so
// inserts are never blocked for a full scan.
func (s *IntentStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var expired []string
	for ref, p := range s.intents {
		if p.Expired(now) {
			expired = append(expired, ref)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, ref := range expired {
		s.mu.Lock()
		if p, ok := s.intents[ref]; ok && p.Expired(now) {
			delete(s.intents, ref)
			removed++
		}
		s.mu.Unlock()
	}
	return removed, nil
}

func (s *IntentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}

// Sweeper is the store surface the background reaper needs.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// RunSweeper calls Sweep on every tick until ctx is done.
func RunSweeper(ctx context.Context, log *slog.Logger, s Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Sweep(ctx, now)
			if err != nil {
				log.Error("intent sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("expired payment intents removed", "count", n)
			}
		}
	}
}
