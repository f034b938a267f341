package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 4 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func newTestRetrier(cfg RetryConfig) (*Retrier, *[]time.Duration) {
	r := NewRetrier(cfg)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetrierSucceedsAfterTransientErrors(t *testing.T) {
	r, slept := newTestRetrier(fastRetryConfig())

	calls := 0
	err := r.Do(context.Background(), "classify", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("POST /v1/messages: 503 Service Unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, *slept)
	assert.Equal(t, CircuitClosed, r.Breaker().GetState())
}

func TestRetrierDoesNotRetryClientErrors(t *testing.T) {
	r, _ := newTestRetrier(fastRetryConfig())

	calls := 0
	err := r.Do(context.Background(), "classify", func(ctx context.Context) error {
		calls++
		return errors.New("401 Unauthorized: invalid x-api-key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	_, failures, _ := r.Breaker().GetMetrics()
	assert.Equal(t, 0, failures, "client errors must not count against the breaker")
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 2
	cfg.CircuitBreakerEnabled = false
	r, slept := newTestRetrier(cfg)

	calls := 0
	cause := errors.New("429 rate limit exceeded")
	err := r.Do(context.Background(), "embed", func(ctx context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "embed failed after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
	assert.Nil(t, r.Breaker())
}

func TestRetrierBackoffIsCapped(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 5
	cfg.CircuitBreakerEnabled = false
	r, slept := newTestRetrier(cfg)

	_ = r.Do(context.Background(), "op", func(ctx context.Context) error {
		return errors.New("connection reset by peer")
	})

	want := []time.Duration{1, 2, 4, 4, 4}
	require.Len(t, *slept, len(want))
	for i, d := range want {
		assert.Equal(t, d*time.Millisecond, (*slept)[i])
	}
}

func TestRetrierStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.CircuitBreakerEnabled = false
	r := NewRetrier(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := r.Do(ctx, "classify", func(ctx context.Context) error {
		calls++
		return errors.New("502 bad gateway")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetrierCircuitBreakerOpens(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	r, _ := newTestRetrier(cfg)

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errors.New("500 internal server error")
	}

	_ = r.Do(context.Background(), "classify", fail)
	_ = r.Do(context.Background(), "classify", fail)
	assert.Equal(t, CircuitOpen, r.Breaker().GetState())

	err := r.Do(context.Background(), "classify", fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls, "open circuit must fail fast without calling the provider")
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 5*time.Millisecond)

	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.GetState())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())

	// A failure while half-open reopens immediately
	cb.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
	assert.Equal(t, "UNKNOWN", CircuitState(42).String())
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{context.Canceled, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("Rate limit reached for requests"), true},
		{errors.New("529 overloaded_error"), true},
		{errors.New("504 Gateway Timeout"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("400 Bad Request: invalid schema"), false},
		{errors.New("403 Forbidden"), false},
		{errors.New("something odd"), false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetriableError(tt.err))
		})
	}
}

func TestRetryConfigValidate(t *testing.T) {
	require.NoError(t, DefaultRetryConfig().Validate())

	bad := DefaultRetryConfig()
	bad.BackoffMultiplier = 0.5
	assert.Error(t, bad.Validate())

	bad = DefaultRetryConfig()
	bad.MaxBackoff = time.Millisecond
	assert.Error(t, bad.Validate())

	bad = DefaultRetryConfig()
	bad.FailureThreshold = 0
	assert.Error(t, bad.Validate())
}
