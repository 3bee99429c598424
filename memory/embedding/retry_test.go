package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBackoffRetryer_SucceedsWithoutRetry(t *testing.T) {
	t.Parallel()

	r := newBackoffRetryer(DefaultRetryPolicy(), zap.NewNop())
	calls := 0

	vec, err := r.Do(context.Background(), func() ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	})

	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)
	require.Equal(t, 1, calls)
}

func TestBackoffRetryer_RetriesRetryableErrors(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	r := newBackoffRetryer(policy, zap.NewNop())
	calls := 0

	vec, err := r.Do(context.Background(), func() ([]float32, error) {
		calls++
		if calls < 3 {
			return nil, &ProviderError{Provider: "test", Retryable: true, Cause: errors.New("timeout")}
		}
		return []float32{4}, nil
	})

	require.NoError(t, err)
	require.Equal(t, []float32{4}, vec)
	require.Equal(t, 3, calls)
}

func TestBackoffRetryer_StopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	r := newBackoffRetryer(policy, zap.NewNop())
	calls := 0

	_, err := r.Do(context.Background(), func() ([]float32, error) {
		calls++
		return nil, &ProviderError{Provider: "test", Retryable: false, Cause: errors.New("bad request")}
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestBackoffRetryer_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	r := newBackoffRetryer(policy, zap.NewNop())
	calls := 0

	_, err := r.Do(context.Background(), func() ([]float32, error) {
		calls++
		return nil, &ProviderError{Provider: "test", Retryable: true, Cause: errors.New("timeout")}
	})

	require.Error(t, err)
	require.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestBackoffRetryer_RespectsContextCancellation(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}
	r := newBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := r.Do(ctx, func() ([]float32, error) {
		calls++
		return nil, &ProviderError{Provider: "test", Retryable: true, Cause: errors.New("timeout")}
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, isRetryable(errors.New("plain error")))
	require.True(t, isRetryable(&ProviderError{Retryable: true}))
	require.False(t, isRetryable(&ProviderError{Retryable: false}))
}
