package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"AgentCore/pkg/logger"
)

// RetryPolicy configures the backoff wrapper around a single remote call.
type RetryPolicy struct {
	MaxAttempts    int     // total attempts including the first
	InitialDelayMS int     // base delay before the first retry
	BackoffFactor  float64 // multiplier per retry
	MaxDelayMS     int     // cap applied before jitter
	Jitter         bool    // multiply the capped delay by [0.5, 1.5)

	// Consecutive429Threshold is how many quota failures in a row trigger
	// the fallback hook (when one is installed) before the attempt budget
	// is exhausted.
	Consecutive429Threshold int
}

// DefaultRetryPolicy returns the standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:             5,
		InitialDelayMS:          500,
		BackoffFactor:           2.0,
		MaxDelayMS:              30_000,
		Jitter:                  true,
		Consecutive429Threshold: 2,
	}
}

// SleepFunc abstracts the backoff wait so tests can run without real time.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FallbackHook is invoked when a quota failure persists. It receives the
// model that was actually attempted (a previous fallback may already have
// substituted it) and the authentication mode in effect. Returning a model
// and true means "switch and retry now"; returning false stops retrying and
// surfaces the error.
type FallbackHook func(ctx context.Context, attemptedModel, authMode string, err error) (newModel string, retry bool)

// RetryState captures where a retry loop currently stands. It is reported to
// the fallback hook's caller for diagnostics; CurrentModel is the model in
// effect, which drifts from the nominal model once a fallback substitutes it.
type RetryState struct {
	Attempt        int
	Consecutive429 int
	CurrentModel   string
	LastErr        error
}

// Retry wraps one idempotent remote call with exponential backoff, jitter and
// quota-driven model fallback. fn is invoked with the model to attempt; the
// model may change between attempts when the fallback hook substitutes one.
// Cancellation propagates immediately and is never treated as retryable.
func Retry[T any](ctx context.Context, policy RetryPolicy, sleep SleepFunc, hook FallbackHook, model, authMode string, fn func(ctx context.Context, model string) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = defaultSleep
	}

	st := RetryState{CurrentModel: model}
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		st.Attempt++

		out, err := fn(ctx, st.CurrentModel)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return zero, err
		}
		st.LastErr = err

		if IsRateLimit(err) {
			st.Consecutive429++
		} else {
			st.Consecutive429 = 0
		}

		// A persistent quota failure escalates to the fallback hook before
		// burning the rest of the attempt budget.
		exhausted := st.Attempt >= policy.MaxAttempts
		persistent429 := st.Consecutive429 >= policy.Consecutive429Threshold && policy.Consecutive429Threshold > 0
		if IsRateLimit(err) && (persistent429 || exhausted) && hook != nil {
			newModel, retryNow := hook(ctx, st.CurrentModel, authMode, err)
			if retryNow {
				logger.Info("Retry", "Falling back to substitute model", map[string]any{
					"from": st.CurrentModel,
					"to":   newModel,
				})
				if newModel != "" {
					st.CurrentModel = newModel
				}
				st.Attempt = 0
				st.Consecutive429 = 0
				continue
			}
			return zero, err
		}

		if !IsRetryable(err) || exhausted {
			return zero, err
		}

		delay := delayForAttempt(st.Attempt, policy)
		if ra := retryAfterOf(err); ra != nil && *ra > delay {
			delay = *ra
		}
		logger.Debug("Retry", "Backing off before retry", map[string]any{
			"attempt":  st.Attempt,
			"delay_ms": delay.Milliseconds(),
		})
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// delayForAttempt computes base * factor^(attempt-1), capped, with optional
// jitter applied after capping.
func delayForAttempt(attempt int, p RetryPolicy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.InitialDelayMS <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1.0
	}
	ms := float64(p.InitialDelayMS) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelayMS > 0 {
		ms = math.Min(ms, float64(p.MaxDelayMS))
	}
	if p.Jitter {
		ms *= 0.5 + rand.Float64()
	}
	return time.Duration(ms * float64(time.Millisecond))
}
