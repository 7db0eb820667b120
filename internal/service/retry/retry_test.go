package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-reserve/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_RetriesConflictsUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(5)
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("save: %w", domain.ErrConcurrencyConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_BudgetExhaustedReturnsConflict(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(4), func(context.Context) error {
		calls++
		return domain.ErrConcurrencyConflict
	})

	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, 4, calls)
}

func TestDo_NonConflictIsNotRetried(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return fmt.Errorf("reserve: %w", domain.ErrInsufficientInventory)
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, fastPolicy(10), func(context.Context) error {
		calls++
		cancel()
		return domain.ErrConcurrencyConflict
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrConcurrencyConflict))
	assert.Equal(t, 1, calls)
}
