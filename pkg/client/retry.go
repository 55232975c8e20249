package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	ingestRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	ingestRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	ingestRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy holds the configuration for retry logic.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps every delay.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// Validate checks the policy for values the retrier cannot work with.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be >= 1 (got %d)", p.MaxAttempts)
	case p.InitialBackoff < 0:
		return fmt.Errorf("initial backoff must be >= 0 (got %s)", p.InitialBackoff)
	case p.MaxBackoff < p.InitialBackoff:
		return fmt.Errorf("max backoff %s is below initial backoff %s", p.MaxBackoff, p.InitialBackoff)
	case p.Multiplier < 1:
		return fmt.Errorf("backoff multiplier must be >= 1 (got %v)", p.Multiplier)
	}
	return nil
}

// Backoff returns the delay after the given failed attempt (1-based):
// min(InitialBackoff * Multiplier^(attempt-1), MaxBackoff). Jitter is not applied.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// JitterFunc perturbs a backoff delay.
type JitterFunc func(time.Duration) time.Duration

// DefaultJitter spreads d uniformly over ±20%.
func DefaultJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// NoJitter returns d unchanged.
func NoJitter(d time.Duration) time.Duration {
	return d
}

// RequestState is the lifecycle state of one logical request.
type RequestState int

const (
	StatePending RequestState = iota
	StateInFlight
	StateSuccess
	StateTransientFailure
	StateTerminalFailure
)

func (s RequestState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateSuccess:
		return "success"
	case StateTransientFailure:
		return "transient_failure"
	case StateTerminalFailure:
		return "terminal_failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Retrier runs an operation under a RetryPolicy.
type Retrier struct {
	policy  RetryPolicy
	jitter  JitterFunc
	logger  zerolog.Logger
	onState func(attempt int, state RequestState)
}

// NewRetrier creates a retrier. A nil jitter means NoJitter.
func NewRetrier(policy RetryPolicy, jitter JitterFunc, logger zerolog.Logger) *Retrier {
	if jitter == nil {
		jitter = NoJitter
	}
	return &Retrier{
		policy: policy,
		jitter: jitter,
		logger: logger,
	}
}

// OnStateChange registers fn to observe every state transition. Not safe to
// call concurrently with Do.
func (r *Retrier) OnStateChange(fn func(attempt int, state RequestState)) {
	r.onState = fn
}

func (r *Retrier) transition(attempt int, state RequestState) {
	r.logger.Trace().Int("attempt", attempt).Stringer("state", state).Msg("Request state")
	if r.onState != nil {
		r.onState(attempt, state)
	}
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempt budget runs out. It returns the number of attempts made.
//
// Exhaustion yields an error wrapping both ErrRetryExhausted and the last
// failure. A cancelled ctx yields ErrContextCancelled.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	r.transition(0, StatePending)

	var lastErr error
	var errClass ErrorClass

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			r.transition(attempt-1, StateTerminalFailure)
			return attempt - 1, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		r.transition(attempt, StateInFlight)
		err := op(ctx)
		if err == nil {
			r.transition(attempt, StateSuccess)
			if attempt > 1 {
				r.logger.Info().
					Str("error_class", string(errClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.transition(attempt, StateTerminalFailure)
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)
		}

		var retryable bool
		errClass, retryable = Classify(err)
		if !retryable {
			r.transition(attempt, StateTerminalFailure)
			return attempt, err
		}

		if attempt >= r.policy.MaxAttempts {
			break
		}

		r.transition(attempt, StateTransientFailure)
		ingestRetriesTotal.WithLabelValues(string(errClass)).Inc()

		delay := r.jitter(r.policy.Backoff(attempt))
		ingestRetryBackoffSeconds.WithLabelValues(string(errClass)).Observe(delay.Seconds())

		r.logger.Debug().
			Err(err).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Warn().
				Str("error_class", string(errClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			r.transition(attempt, StateTerminalFailure)
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	ingestRetryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
	r.logger.Warn().
		Err(lastErr).
		Str("error_class", string(errClass)).
		Int("max_attempts", r.policy.MaxAttempts).
		Msg("Retry attempts exhausted")
	r.transition(r.policy.MaxAttempts, StateTerminalFailure)

	return r.policy.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.policy.MaxAttempts, lastErr)
}
