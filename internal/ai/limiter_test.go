package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveLimiterAdjusts(t *testing.T) {
	l := NewAdaptiveLimiter(1, 0.2, 4, 0.5, 0.5)

	require.NoError(t, l.Wait(context.Background()))

	l.Failure()
	assert.InDelta(t, 0.5, l.CurrentLimit(), 1e-9)
	l.Failure()
	assert.InDelta(t, 0.25, l.CurrentLimit(), 1e-9)
	l.Failure()
	assert.InDelta(t, 0.2, l.CurrentLimit(), 1e-9) // floor

	// Success right after a failure does not ramp up.
	l.Success()
	assert.InDelta(t, 0.2, l.CurrentLimit(), 1e-9)
}

func TestAdaptiveLimiterCeiling(t *testing.T) {
	l := NewAdaptiveLimiter(3.8, 1, 4, 0.5, 0.5)
	l.Success()
	assert.InDelta(t, 4, l.CurrentLimit(), 1e-9)
}

func TestAdaptiveLimiterWaitHonorsContext(t *testing.T) {
	l := NewAdaptiveLimiter(0.2, 0.2, 1, 0.1, 0.5)
	require.NoError(t, l.Wait(context.Background())) // burst token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}
