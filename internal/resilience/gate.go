// Package resilience wraps calls to a remote authority in a circuit breaker
// with a per-call timeout and an optional retry policy for idempotent calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// ErrOpen is returned instead of attempting the remote call.
var ErrOpen = errors.New("circuit open")

type Settings struct {
	Name string
	// CallTimeout bounds every single attempt.
	CallTimeout time.Duration
	// Interval is a tumbling window: closed-state counts are cleared at each
	// boundary instead of sliding, so failures on both sides of a boundary are
	// judged separately. Zero keeps counting until the state changes.
	Interval time.Duration
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// FailureRatio trips the circuit once exceeded within Interval.
	FailureRatio float64
	// MinRequests is the sample size required before the ratio is considered.
	MinRequests         uint32
	HalfOpenMaxRequests uint32
	// Retries applies to idempotent calls only.
	Retries uint64
}

type Gate struct {
	name    string
	cb      *gobreaker.CircuitBreaker[any]
	timeout time.Duration
	retries uint64
	forced  atomic.Bool
	logger  *zap.Logger
}

func NewGate(s Settings, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		name:    s.Name,
		timeout: s.CallTimeout,
		retries: s.Retries,
		logger:  logger.With(zap.String("gate", s.Name)),
	}

	minRequests := s.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}
	ratio := s.FailureRatio

	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenMaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsBusinessOutcome(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

func (g *Gate) Name() string {
	return g.name
}

// State reports the effective state, taking the manual override into account.
func (g *Gate) State() State {
	if g.forced.Load() {
		return StateOpen
	}
	return g.cb.State()
}

func (g *Gate) IsOpen() bool {
	return g.State() == StateOpen
}

// ForceOpen pins the circuit open until called again with false.
func (g *Gate) ForceOpen(on bool) {
	if g.forced.Swap(on) != on {
		g.logger.Warn("circuit manual override", zap.Bool("forced_open", on))
	}
}

// Do runs fn once through the breaker.
func (g *Gate) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.execute(ctx, op, fn, false)
}

// DoIdempotent runs fn through the breaker, retrying transport failures with
// exponential backoff. fn must be safe to repeat.
func (g *Gate) DoIdempotent(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.execute(ctx, op, fn, g.retries > 0)
}

func (g *Gate) execute(ctx context.Context, op string, fn func(ctx context.Context) error, retry bool) error {
	if g.forced.Load() {
		return fmt.Errorf("%s: %w", op, ErrOpen)
	}

	_, err := g.cb.Execute(func() (any, error) {
		if !retry {
			return nil, g.attempt(ctx, fn)
		}
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 50 * time.Millisecond
		policy.MaxInterval = time.Second
		b := backoff.WithContext(backoff.WithMaxRetries(policy, g.retries), ctx)
		return nil, backoff.Retry(func() error {
			err := g.attempt(ctx, fn)
			if err != nil && domain.IsBusinessOutcome(err) {
				return backoff.Permanent(err)
			}
			if err != nil {
				g.logger.Debug("retrying call", zap.String("op", op), zap.Error(err))
			}
			return err
		}, b)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", op, ErrOpen)
	}
	return err
}

func (g *Gate) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return fn(callCtx)
}
