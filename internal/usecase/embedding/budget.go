package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// ParseBudgetAction validates a configured action; empty means warn.
func ParseBudgetAction(s string) (BudgetAction, error) {
	switch BudgetAction(s) {
	case "", BudgetActionWarn:
		return BudgetActionWarn, nil
	case BudgetActionReject:
		return BudgetActionReject, nil
	default:
		return "", fmt.Errorf("unknown budget action %q (want warn or reject)", s)
	}
}

// BudgetStore persists token counters so the budget survives restarts and
// is shared between the server and CLI runs.
type BudgetStore interface {
	Load(ctx context.Context, provider string, now time.Time) (daily, monthly int64, err error)
	Add(ctx context.Context, provider string, now time.Time, tokens int64) error
}

const storeWriteTimeout = 2 * time.Second

// BudgetTracker enforces daily and monthly embedding token limits.
// Check is in-memory only; Record updates memory, then writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	now            func() time.Time
	logger         *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	b.lastDayReset = truncateToDay(b.now())
	b.lastMonthReset = truncateToMonth(b.now())
	return b
}

// WithStore attaches a persistence store and loads the current counters.
// A failed load is logged and the tracker starts from zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	daily, monthly, err := store.Load(ctx, b.provider, b.now())
	if err != nil {
		b.logger.Warn("Failed to load token budget", zap.String("provider", b.provider), zap.Error(err))
		return b
	}
	b.dailyUsed, b.monthlyUsed = daily, monthly
	b.logger.Info("Token budget loaded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", daily),
		zap.Int64("monthly_used", monthly),
	)
	return b
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("%s: daily %d/%d, monthly %d/%d: %w",
			b.provider, b.dailyUsed, b.dailyLimit, b.monthlyUsed, b.monthlyLimit, domain.ErrEmbeddingQuotaExceeded)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// не привязываемся к контексту запроса: его могут отменить сразу после ответа
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if err := store.Add(ctx, b.provider, now, tokens); err != nil {
		b.logger.Warn("Failed to persist token budget", zap.String("provider", b.provider), zap.Error(err))
	}
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	if today := truncateToDay(now); today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth := truncateToMonth(now); thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
