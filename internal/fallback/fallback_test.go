package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_PrimarySucceedsWithoutTryingSubstitutes(t *testing.T) {
	h := NewHandler[int](DefaultConfig())
	called := false

	res := h.Execute(context.Background(),
		func(ctx context.Context) (int, error) { return 7, nil },
		func(ctx context.Context) (int, error) { called = true; return 0, nil },
	)

	require.NoError(t, res.Err)
	assert.Equal(t, 7, res.Value)
	assert.Equal(t, "primary", res.Source)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, called, "substitute should not run when primary succeeds")
}

func TestHandler_FallsBackToSubstituteOnPrimaryError(t *testing.T) {
	h := NewHandler[string](Config{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, Jitter: 0})

	res := h.Execute(context.Background(),
		func(ctx context.Context) (string, error) { return "", errors.New("engine unavailable") },
		func(ctx context.Context) (string, error) { return "mock-audio", nil },
	)

	require.NoError(t, res.Err)
	assert.Equal(t, "mock-audio", res.Value)
	assert.Equal(t, "substitute", res.Source)
	assert.Equal(t, 2, res.Attempts)
}

func TestHandler_ExhaustsChainAndReturnsLastError(t *testing.T) {
	h := NewHandler[int](Config{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, Jitter: 0})
	last := errors.New("mock synth failed")

	res := h.Execute(context.Background(),
		func(ctx context.Context) (int, error) { return 0, errors.New("primary failed") },
		func(ctx context.Context) (int, error) { return 0, last },
	)

	require.Error(t, res.Err)
	assert.Equal(t, last, res.Err)
	assert.Equal(t, "exhausted", res.Source)
	assert.Equal(t, 2, res.Attempts)
}

func TestHandler_StopsOnContextCancellation(t *testing.T) {
	h := NewHandler[int](Config{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: 0})
	ctx, cancel := context.WithCancel(context.Background())

	res := h.Execute(ctx,
		func(ctx context.Context) (int, error) {
			cancel()
			return 0, errors.New("primary failed")
		},
		func(ctx context.Context) (int, error) { return 1, nil },
	)

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

func TestHandler_NoSubstitutesReturnsPrimaryErrorExhausted(t *testing.T) {
	h := NewHandler[int](DefaultConfig())
	primaryErr := errors.New("no engine configured")

	res := h.Execute(context.Background(), func(ctx context.Context) (int, error) {
		return 0, primaryErr
	})

	assert.Equal(t, primaryErr, res.Err)
	assert.Equal(t, "exhausted", res.Source)
	assert.Equal(t, 1, res.Attempts)
}
