package ai

import (
	"context"
	"log"
	"sync"
	"time"

	"server-slunt/internal/rng"
)

// Canned lines served while the completion service is down. They still go
// through the response shaper like any generated text.
var fallbackLines = []string{
	"brain's lagging hard right now",
	"hold on my thoughts are buffering",
	"yeah no idea, ask me again in a minute",
	"something upstairs just blue-screened",
	"can't think straight, probably the government",
}

// Breaker is a circuit breaker around a Provider. After enough consecutive
// failures it stops calling the service for a cooldown window and serves a
// canned line instead, so the bot keeps talking while the backend is down.
type Breaker struct {
	provider  Provider
	rand      rng.Source
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// NewBreaker wraps provider. threshold <= 0 defaults to 3 consecutive
// failures, cooldown <= 0 to 60 seconds.
func NewBreaker(provider Provider, rand rng.Source, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{provider: provider, rand: rand, threshold: threshold, cooldown: cooldown}
}

// Generate calls the wrapped provider unless the breaker is open, in which
// case a fallback line comes back immediately with no error.
func (b *Breaker) Generate(ctx context.Context, messages []Message, params GenParams) (string, error) {
	if b.isOpen() {
		return b.fallback(), nil
	}

	reply, err := b.provider.Generate(ctx, messages, params)
	if err != nil {
		if b.recordFailure() {
			log.Printf("[AI] breaker open after %d consecutive failures", b.threshold)
			return b.fallback(), nil
		}
		return "", err
	}
	b.recordSuccess()
	return reply, nil
}

func (b *Breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedAt.IsZero() {
		return false
	}
	if time.Since(b.openedAt) >= b.cooldown {
		// Half-open: allow one probe through.
		b.openedAt = time.Time{}
		b.failures = b.threshold - 1
		return false
	}
	return true
}

// recordFailure returns true when this failure tripped the breaker.
func (b *Breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold && b.openedAt.IsZero() {
		b.openedAt = time.Now()
		return true
	}
	return false
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.openedAt = time.Time{}
	b.mu.Unlock()
}

func (b *Breaker) fallback() string {
	roll := 0.0
	if b.rand != nil {
		roll = b.rand.Float64()
	}
	i := int(roll * float64(len(fallbackLines)))
	if i >= len(fallbackLines) {
		i = len(fallbackLines) - 1
	}
	return fallbackLines[i]
}
