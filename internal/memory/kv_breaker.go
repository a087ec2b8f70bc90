package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker placed in front of a KV.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the breaker.
	MaxFailures uint32 `yaml:"max_failures"`

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration `yaml:"timeout"`

	// HalfOpenRequests is the number of probe calls allowed while half-open.
	HalfOpenRequests uint32 `yaml:"half_open_requests"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 1
	}
	return c
}

// BreakerKV wraps a KV with a circuit breaker so a failing backend is not
// hammered on every append. While open, calls fail fast with
// ErrKVUnavailable.
type BreakerKV struct {
	inner   KV
	breaker *gobreaker.CircuitBreaker
}

// Compile-time interface check.
var _ KV = (*BreakerKV)(nil)

// NewBreakerKV wraps inner. A nil logger uses slog.Default().
func NewBreakerKV(inner KV, cfg BreakerConfig, logger *slog.Logger) *BreakerKV {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        "memory-kv",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("memory: kv breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerKV{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Get implements KV.
func (b *BreakerKV) Get(ctx context.Context, key string) (string, bool, error) {
	type result struct {
		value string
		ok    bool
	}
	out, err := b.breaker.Execute(func() (interface{}, error) {
		v, ok, err := b.inner.Get(ctx, key)
		return result{value: v, ok: ok}, err
	})
	if err != nil {
		return "", false, b.wrap(err)
	}
	r := out.(result)
	return r.value, r.ok, nil
}

// Set implements KV.
func (b *BreakerKV) Set(ctx context.Context, key, value string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Set(ctx, key, value)
	})
	return b.wrap(err)
}

// Remove implements KV.
func (b *BreakerKV) Remove(ctx context.Context, key string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Remove(ctx, key)
	})
	return b.wrap(err)
}

// Keys implements Lister when the wrapped KV does.
func (b *BreakerKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	lister, ok := b.inner.(Lister)
	if !ok {
		return nil, nil
	}
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return lister.Keys(ctx, prefix)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	keys, _ := out.([]string)
	return keys, nil
}

// State returns the current breaker state ("closed", "open", "half-open").
func (b *BreakerKV) State() string {
	return b.breaker.State().String()
}

func (b *BreakerKV) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrKVUnavailable, err)
	}
	return err
}
