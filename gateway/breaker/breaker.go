// Package breaker decorates a transfer gateway with a circuit breaker so a
// failing gateway is not hammered while it recovers.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/types"
)

// Compile-time interface check.
var _ gateway.Gateway = (*Gateway)(nil)

// Config controls when the breaker opens and how it probes for recovery.
type Config struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval is the cyclic period in which closed-state counts are cleared.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// FailureRatio opens the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns conservative breaker settings.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// Gateway wraps another gateway. Only transient failures count against the
// breaker; definitive rejections such as insufficient balance do not.
type Gateway struct {
	next   gateway.Gateway
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// Option configures the breaker gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// New wraps next with a breaker named name.
func New(name string, next gateway.Gateway, cfg Config, opts ...Option) *Gateway {
	g := &Gateway{next: next, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}

	settings := gobreaker.Settings{
		Name:        "vault-gateway-" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("gateway breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || gateway.IsRejection(err)
		},
	}
	g.cb = gobreaker.NewCircuitBreaker(settings)

	return g
}

// State returns the breaker state as "closed", "open" or "half-open".
func (g *Gateway) State() string {
	return g.cb.State().String()
}

// Transfer implements gateway.Gateway.
func (g *Gateway) Transfer(ctx context.Context, from, to types.Account, authority types.Identity, amount types.Amount) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.next.Transfer(ctx, from, to, authority, amount)
	})
	return mapBreakerError(err)
}

// Balance implements gateway.Gateway.
func (g *Gateway) Balance(ctx context.Context, account types.Account) (types.Amount, error) {
	out, err := g.cb.Execute(func() (any, error) {
		return g.next.Balance(ctx, account)
	})
	if err != nil {
		return 0, mapBreakerError(err)
	}
	return out.(types.Amount), nil
}

func mapBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", gateway.ErrUnavailable, err)
	}
	return err
}
