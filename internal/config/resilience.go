package config

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry configuration constants
const (
	// Document store batch commit retry configuration
	StoreWriteMaxAttempts       = 3
	StoreWriteInitialWait       = 500 * time.Millisecond
	StoreWriteMaxWait           = 5 * time.Second
	StoreWriteBackoffMultiplier = 2.0
	StoreWriteTimeout           = 30 * time.Second

	// Document store read retry configuration
	StoreReadMaxAttempts       = 3
	StoreReadInitialWait       = 250 * time.Millisecond
	StoreReadMaxWait           = 2 * time.Second
	StoreReadBackoffMultiplier = 2.0
	StoreReadTimeout           = 20 * time.Second

	// Cache operations are best-effort: one attempt, short timeout
	CacheOpMaxAttempts       = 1
	CacheOpInitialWait       = 0
	CacheOpMaxWait           = 0
	CacheOpBackoffMultiplier = 1.0
	CacheOpTimeout           = 3 * time.Second

	// Google Sheets calls hit per-minute quotas, so waits are longer
	SheetsAPIMaxAttempts       = 3
	SheetsAPIInitialWait       = 1 * time.Second
	SheetsAPIMaxWait           = 10 * time.Second
	SheetsAPIBackoffMultiplier = 2.0
	SheetsAPITimeout           = 30 * time.Second
)

// RetryConfig defines retry behavior for operations
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Timeout     time.Duration
}

// ResilienceConfig contains all retry configurations
type ResilienceConfig struct {
	StoreWrite RetryConfig
	StoreRead  RetryConfig
	CacheOp    RetryConfig
	SheetsAPI  RetryConfig
}

// DefaultResilienceConfig provides sensible defaults
var DefaultResilienceConfig = ResilienceConfig{
	StoreWrite: RetryConfig{
		MaxAttempts: StoreWriteMaxAttempts,
		InitialWait: StoreWriteInitialWait,
		MaxWait:     StoreWriteMaxWait,
		Multiplier:  StoreWriteBackoffMultiplier,
		Timeout:     StoreWriteTimeout,
	},
	StoreRead: RetryConfig{
		MaxAttempts: StoreReadMaxAttempts,
		InitialWait: StoreReadInitialWait,
		MaxWait:     StoreReadMaxWait,
		Multiplier:  StoreReadBackoffMultiplier,
		Timeout:     StoreReadTimeout,
	},
	CacheOp: RetryConfig{
		MaxAttempts: CacheOpMaxAttempts,
		InitialWait: CacheOpInitialWait,
		MaxWait:     CacheOpMaxWait,
		Multiplier:  CacheOpBackoffMultiplier,
		Timeout:     CacheOpTimeout,
	},
	SheetsAPI: RetryConfig{
		MaxAttempts: SheetsAPIMaxAttempts,
		InitialWait: SheetsAPIInitialWait,
		MaxWait:     SheetsAPIMaxWait,
		Multiplier:  SheetsAPIBackoffMultiplier,
		Timeout:     SheetsAPITimeout,
	},
}

// Backoff returns the wait before the given retry attempt (1-based), capped at MaxWait
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 || c.InitialWait <= 0 {
		return 0
	}
	wait := float64(c.InitialWait) * math.Pow(c.Multiplier, float64(attempt-1))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		return c.MaxWait
	}
	return time.Duration(wait)
}

// WithRetry runs fn until it succeeds, the attempts are exhausted or ctx is done.
// Each attempt gets its own Timeout-bounded context.
func WithRetry(ctx context.Context, cfg RetryConfig, operation string, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", operation, err)
		}

		attemptCtx := ctx
		cancel := func() {}
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempts", attempt).
					Msg("Operation succeeded after retries")
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		wait := cfg.Backoff(attempt)
		log.Warn().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", wait).
			Msg("Operation failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", operation, ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
