package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/meshflow/types"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableError(t *testing.T) {
	retryable := types.NewError(types.ErrRateLimited, "rate limit reached").
		WithHTTPStatus(http.StatusTooManyRequests).WithRetryable(true)

	calls := 0
	out, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, retryable
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := types.NewError(types.ErrUnauthorized, "bad key")

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	retryable := types.NewError(types.ErrUpstreamError, "bad gateway").WithRetryable(true)

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, retryable
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := fastPolicy()
	policy.InitialDelay = 1 * time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(_ context.Context) (int, error) {
			calls++
			return 0, types.NewError(types.ErrUpstreamError, "down").WithRetryable(true)
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoCustomRetryIf(t *testing.T) {
	sentinel := errors.New("try again")

	policy := fastPolicy()
	policy.RetryIf = func(err error) bool { return errors.Is(err, sentinel) }

	calls := 0
	out, err := Do(context.Background(), policy, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", sentinel
		}
		return "second", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
	assert.Equal(t, 2, calls)
}

func TestDelayBounds(t *testing.T) {
	policy := Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}.normalized()

	for attempt := 0; attempt < 10; attempt++ {
		d := policy.delay(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 1*time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
}
