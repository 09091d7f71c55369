// Package resilience shields the retrieval pipeline from flaky model
// services and the message bus. Outbound calls run through an Executor
// that retries transient failures with jittered exponential backoff and
// stops calling a dependency whose breaker tripped on consecutive
// failures.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome classifies one failed call: Retry allows another attempt within
// the same Run, TripBreaker counts the failure toward opening the circuit.
type Outcome struct {
	Retry       bool
	TripBreaker bool
}

// Classify maps a dependency error to an Outcome. A nil classifier treats
// every error as final and breaker-relevant.
type Classify func(err error) Outcome

type Executor struct {
	policy Policy

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func New(policy Policy) *Executor {
	return &Executor{
		policy:   policy.fill(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Run executes call under the executor's policy. name identifies the
// dependency operation; each name gets its own breaker. The breaker guards
// every attempt individually, so an open circuit fails fast instead of
// burning the retry budget against a dependency that is known down.
func (e *Executor) Run(ctx context.Context, name string, classify Classify, call func(context.Context) error) error {
	if call == nil {
		return fmt.Errorf("resilience: call for %q is nil", name)
	}
	if classify == nil {
		classify = func(error) Outcome { return Outcome{TripBreaker: true} }
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.attempt(ctx, name, classify, call)
		if err == nil {
			return nil
		}
		lastErr = err

		if CircuitOpen(err) {
			return err
		}
		if !classify(err).Retry || attempt == e.policy.Attempts {
			return err
		}

		delay := e.delayFor(attempt)
		slog.Warn("dependency_retry",
			"dependency", name,
			"attempt", attempt,
			"attempts", e.policy.Attempts,
			"delay_ms", float64(delay.Microseconds())/1000.0,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (e *Executor) attempt(ctx context.Context, name string, classify Classify, call func(context.Context) error) error {
	if e.policy.DisableBreaker {
		return call(ctx)
	}
	_, err := e.breakerFor(name, classify).Execute(func() (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

// delayFor grows the backoff exponentially from BaseDelay, caps it at
// DelayCap and spreads concurrent retriers by +/- JitterRatio.
func (e *Executor) delayFor(attempt int) time.Duration {
	delay := float64(e.policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= e.policy.DelayGrowth
	}
	if limit := float64(e.policy.DelayCap); delay > limit {
		delay = limit
	}
	if e.policy.JitterRatio > 0 {
		delay *= 1 + e.policy.JitterRatio*(2*rand.Float64()-1)
	}
	return time.Duration(delay)
}

func (e *Executor) breakerFor(name string, classify Classify) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.RLock()
	cb, ok := e.breakers[name]
	e.mu.RUnlock()
	if ok {
		return cb
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[name]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: e.policy.ProbeRequests,
		Timeout:     e.policy.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.policy.TripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).TripBreaker
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("dependency_breaker",
				"dependency", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	e.breakers[name] = cb
	return cb
}

// CircuitOpen reports whether err came from an open or saturated breaker.
func CircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
