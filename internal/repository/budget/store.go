package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/paperdex/internal/db"
)

// Key TTLs outlive their period so a rollover never reads a fresh zero early.
const (
	DailyTTL   = 48 * time.Hour
	MonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for budget counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// Store persists embedding token counters per provider, day and month.
type Store struct {
	store  store
	prefix string
}

// New creates a budget store. Keys live under prefix, e.g. "paperdex:".
func New(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix}
}

// DailyKey returns the counter key of the UTC day of t.
func (s *Store) DailyKey(provider string, t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", s.prefix, provider, t.UTC().Format("2006-01-02"))
}

// MonthlyKey returns the counter key of the UTC month of t.
func (s *Store) MonthlyKey(provider string, t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", s.prefix, provider, t.UTC().Format("2006-01"))
}

// Load returns the tokens already spent in the day and month of now.
func (s *Store) Load(ctx context.Context, provider string, now time.Time) (daily, monthly int64, err error) {
	if daily, err = s.get(ctx, s.DailyKey(provider, now)); err != nil {
		return 0, 0, err
	}
	if monthly, err = s.get(ctx, s.MonthlyKey(provider, now)); err != nil {
		return 0, 0, err
	}
	return daily, monthly, nil
}

// Add records tokens spent at now on both counters.
func (s *Store) Add(ctx context.Context, provider string, now time.Time, tokens int64) error {
	key := s.DailyKey(provider, now)
	if _, err := s.store.IncrByWithTTL(ctx, key, tokens, DailyTTL); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	key = s.MonthlyKey(provider, now)
	if _, err := s.store.IncrByWithTTL(ctx, key, tokens, MonthlyTTL); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: parse %q: %w", key, data, err)
	}
	return val, nil
}
