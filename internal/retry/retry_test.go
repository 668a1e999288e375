package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errTransient
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return errTransient
		})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	attempts := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		IsRetryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(ctx context.Context) error {
		attempts++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond},
		func(ctx context.Context) error {
			attempts++
			return errTransient
		})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}
