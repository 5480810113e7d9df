package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/docstore"
)

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zap.NewNop(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: down", docstore.ErrUnavailable)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zap.NewNop(), 3, time.Millisecond, func() error {
		calls++
		return fmt.Errorf("%w: down", docstore.ErrUnavailable)
	})
	require.ErrorIs(t, err, docstore.ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_NonTransientFailsImmediately(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zap.NewNop(), 3, time.Millisecond, func() error {
		calls++
		return docstore.ErrDimensionMismatch
	})
	require.ErrorIs(t, err, docstore.ErrDimensionMismatch)
	assert.Equal(t, 1, calls, "only transient unavailability is retried")
}

func TestRetryWithBackoff_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, zap.NewNop(), 3, time.Millisecond, func() error {
		t.Fatal("operation must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoff_StopsWaitingOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- retryWithBackoff(ctx, zap.NewNop(), 3, time.Hour, func() error {
			calls++
			cancel()
			return fmt.Errorf("%w: down", docstore.ErrUnavailable)
		})
	}()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zap.NewNop(), 0, time.Millisecond, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
