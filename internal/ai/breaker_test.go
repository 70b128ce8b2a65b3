package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-slunt/internal/rng"
)

type flakyProvider struct {
	err   error
	calls int
}

func (p *flakyProvider) Generate(context.Context, []Message, GenParams) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "all good here", nil
}

func TestBreakerPassesThroughOnSuccess(t *testing.T) {
	p := &flakyProvider{}
	b := NewBreaker(p, rng.Fixed(0), 3, time.Hour)

	got, err := b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err)
	assert.Equal(t, "all good here", got)
}

func TestBreakerSurfacesEarlyFailures(t *testing.T) {
	p := &flakyProvider{err: errors.New("boom")}
	b := NewBreaker(p, rng.Fixed(0), 3, time.Hour)

	_, err := b.Generate(context.Background(), nil, DefaultGenParams())
	assert.Error(t, err)
	_, err = b.Generate(context.Background(), nil, DefaultGenParams())
	assert.Error(t, err)
}

func TestBreakerTripsAndServesFallback(t *testing.T) {
	p := &flakyProvider{err: errors.New("boom")}
	b := NewBreaker(p, rng.Fixed(0), 2, time.Hour)

	_, err := b.Generate(context.Background(), nil, DefaultGenParams())
	require.Error(t, err)

	// Second failure trips the breaker; a canned line comes back instead.
	got, err := b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err)
	assert.Contains(t, fallbackLines, got)

	// While open, the provider is not called at all.
	before := p.calls
	got, err = b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err)
	assert.Contains(t, fallbackLines, got)
	assert.Equal(t, before, p.calls)
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	p := &flakyProvider{err: errors.New("boom")}
	b := NewBreaker(p, rng.Fixed(0), 1, time.Millisecond)

	_, err := b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err) // tripped immediately, fallback served

	time.Sleep(5 * time.Millisecond)
	p.err = nil

	got, err := b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err)
	assert.Equal(t, "all good here", got)

	// Success fully closed the breaker; the next failure trips it afresh.
	p.err = errors.New("boom")
	got, err = b.Generate(context.Background(), nil, DefaultGenParams())
	require.NoError(t, err)
	assert.Contains(t, fallbackLines, got)
}

func TestBreakerFallbackSpreads(t *testing.T) {
	p := &flakyProvider{err: errors.New("boom")}
	b := NewBreaker(p, rng.Default(3), 1, time.Hour)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		got, err := b.Generate(context.Background(), nil, DefaultGenParams())
		if err == nil {
			seen[got] = true
		}
	}
	assert.Greater(t, len(seen), 1)
}
