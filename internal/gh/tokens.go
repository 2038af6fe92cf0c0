// Package gh implements the GitHub directory API surface: a rotating token
// pool, a rate-limit-aware HTTP client, the since-cursor paginator, and the
// commit-derived enrichment fallbacks.
package gh

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/clock"
	"github.com/gitscout/gitscout/internal/metrics"
)

// ErrNoTokens is returned when the pool is constructed without credentials.
// This is fatal at startup, not retryable.
var ErrNoTokens = errors.New("no GitHub tokens configured")

// TokenPool owns a set of interchangeable API tokens and tracks which are
// cooling down after a rate-limit response. All rotation state is guarded by
// a single mutex.
type TokenPool struct {
	mu        sync.Mutex
	tokens    []string
	current   int
	cooldowns map[int]time.Time

	clock  clock.Clock
	sleep  func(time.Duration)
	logger *zap.Logger
}

// NewTokenPool creates a pool over the given tokens. Empty entries are
// discarded; a pool with zero usable tokens fails construction.
func NewTokenPool(tokens []string, clk clock.Clock, logger *zap.Logger) (*TokenPool, error) {
	usable := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("token pool initialized", zap.Int("tokens", len(usable)))
	return &TokenPool{
		tokens:    usable,
		cooldowns: make(map[int]time.Time),
		clock:     clk,
		sleep:     time.Sleep,
		logger:    logger,
	}, nil
}

// Size returns the number of tokens in the pool.
func (p *TokenPool) Size() int {
	return len(p.tokens)
}

// Current returns the currently selected token.
func (p *TokenPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens[p.current]
}

// MarkRateLimited records the reset time for the current token and rotates to
// another available one. When every token is cooling down the call blocks
// until the earliest reset elapses, then rechecks; time advancing guarantees
// termination.
func (p *TokenPool) MarkRateLimited(resetAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cooldowns[p.current] = resetAt
	p.logger.Warn("token rate limited",
		zap.Int("token", p.current+1),
		zap.Int("pool_size", len(p.tokens)),
		zap.Time("reset_at", resetAt),
	)
	p.rotateLocked()
}

// rotateLocked selects the next available token round-robin from the current
// index, waiting out cooldowns if none is available. Caller holds p.mu.
func (p *TokenPool) rotateLocked() {
	for {
		now := p.clock.Now()

		available := make(map[int]bool, len(p.tokens))
		for i := range p.tokens {
			reset, limited := p.cooldowns[i]
			if !limited || !reset.After(now) {
				if limited {
					delete(p.cooldowns, i)
					p.logger.Info("token available again", zap.Int("token", i+1))
				}
				available[i] = true
			}
		}

		if len(available) > 0 {
			// Round-robin from the current index to spread load.
			for offset := 1; offset <= len(p.tokens); offset++ {
				next := (p.current + offset) % len(p.tokens)
				if available[next] {
					p.current = next
					metrics.ObserveTokenRotation()
					p.logger.Info("switched token", zap.Int("token", next+1))
					return
				}
			}
			return
		}

		earliest := time.Time{}
		for _, reset := range p.cooldowns {
			if earliest.IsZero() || reset.Before(earliest) {
				earliest = reset
			}
		}
		wait := earliest.Sub(now) + time.Second
		if wait < 0 {
			wait = 0
		}
		p.logger.Warn("all tokens rate limited, waiting for earliest reset",
			zap.Duration("wait", wait),
		)
		metrics.ObserveRateLimitWait(wait)
		p.mu.Unlock()
		p.sleep(wait)
		p.mu.Lock()
	}
}
