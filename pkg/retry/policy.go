// Package retry wraps an operation with bounded exponential backoff.
//
// A Policy tells transient failures from fatal ones by the error's type in
// pkg/errors. Fatal kinds are returned on the first failure; transient ones
// are retried Limit times, waiting InitialWait + 2^n seconds before the n-th
// retry. A Policy keeps no state between calls and may be shared.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

const (
	// DefaultLimit is the number of retries after the first attempt.
	DefaultLimit = 5
	// DefaultInitialWait is added to every backoff step.
	DefaultInitialWait = time.Second
)

// DefaultNonRetryable are the error kinds never worth another attempt.
var DefaultNonRetryable = []errors.ErrorType{
	errors.ErrorTypeConfig,
	errors.ErrorTypeAuthentication,
	errors.ErrorTypeData,
	errors.ErrorTypeSink,
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Observer is told about every retry before its wait starts. It must not
// block and cannot influence the outcome.
type Observer interface {
	OnRetry(attempt int, wait time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(attempt int, wait time.Duration, err error)

// OnRetry implements Observer.
func (f ObserverFunc) OnRetry(attempt int, wait time.Duration, err error) { f(attempt, wait, err) }

// Observers fans a retry notification out to several observers.
type Observers []Observer

// OnRetry implements Observer.
func (o Observers) OnRetry(attempt int, wait time.Duration, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.OnRetry(attempt, wait, err)
		}
	}
}

// Policy defines retry behavior
type Policy struct {
	Limit        int
	InitialWait  time.Duration
	MaxWait      time.Duration // 0 means uncapped
	NonRetryable []errors.ErrorType
	Sleep        SleepFunc
	Observer     Observer
}

// Option customizes a Policy.
type Option func(*Policy)

// WithSleep replaces the timer based sleep, mostly for tests.
func WithSleep(fn SleepFunc) Option { return func(p *Policy) { p.Sleep = fn } }

// WithObserver sets the retry observer.
func WithObserver(o Observer) Option { return func(p *Policy) { p.Observer = o } }

// WithMaxWait caps a single backoff step.
func WithMaxWait(d time.Duration) Option { return func(p *Policy) { p.MaxWait = d } }

// WithNonRetryable replaces the set of fatal error kinds.
func WithNonRetryable(types ...errors.ErrorType) Option {
	return func(p *Policy) { p.NonRetryable = append([]errors.ErrorType(nil), types...) }
}

// New creates a policy. Negative arguments are clamped to zero.
func New(limit int, initialWait time.Duration, opts ...Option) *Policy {
	if limit < 0 {
		limit = 0
	}
	if initialWait < 0 {
		initialWait = 0
	}
	p := &Policy{
		Limit:        limit,
		InitialWait:  initialWait,
		NonRetryable: append([]errors.ErrorType(nil), DefaultNonRetryable...),
		Sleep:        TimerSleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TimerSleep waits on a timer, returning early with ctx's error.
func TimerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// maxBackoffExponent keeps 2^n seconds inside time.Duration.
const maxBackoffExponent = 32

// Wait returns the backoff before the n-th retry, n starting at 1. The
// exponential step saturates at 2^32 seconds.
func (p *Policy) Wait(n int) time.Duration {
	if n > maxBackoffExponent {
		n = maxBackoffExponent
	}
	step := time.Duration(math.Pow(2, float64(n))) * time.Second
	wait := p.InitialWait + step
	if wait < step {
		wait = math.MaxInt64
	}
	return p.capped(wait)
}

func (p *Policy) capped(wait time.Duration) time.Duration {
	if p.MaxWait > 0 && wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}

// waitFor is Wait(n), stretched to the server's Retry-After on rate limit
// errors.
func (p *Policy) waitFor(n int, err error) time.Duration {
	wait := p.Wait(n)
	if errors.TypeOf(err) != errors.ErrorTypeRateLimit {
		return wait
	}
	if v, ok := errors.Detail(err, errors.DetailRetryAfter); ok {
		if ra, ok := v.(time.Duration); ok && ra > wait {
			wait = p.capped(ra)
		}
	}
	return wait
}

// Retryable reports whether err may be retried under this policy.
func (p *Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	kind := errors.TypeOf(err)
	if kind == errors.ErrorTypeRetryExhausted {
		return false
	}
	for _, t := range p.NonRetryable {
		if kind == t {
			return false
		}
	}
	return true
}

// Do runs op until it succeeds, fails with a non-retryable error, or has
// failed Limit+1 times. The final transient error comes back wrapped as
// ErrorTypeRetryExhausted.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "retry cancelled")
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.Retryable(err) {
			return err
		}
		if attempt >= p.Limit {
			break
		}

		retryNo := attempt + 1
		wait := p.waitFor(retryNo, err)
		if p.Observer != nil {
			p.Observer.OnRetry(retryNo, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return errors.Wrap(fmt.Errorf("%w (last error: %v)", serr, lastErr), errors.ErrorTypeTimeout, "retry cancelled")
		}
	}

	return errors.Wrap(lastErr, errors.ErrorTypeRetryExhausted,
		fmt.Sprintf("all %d attempts failed", p.Limit+1))
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
