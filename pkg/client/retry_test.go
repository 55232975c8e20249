package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
	if p.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", p.InitialBackoff)
	}
	if p.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", p.MaxBackoff)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", p.Multiplier)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second},
		{50, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.attempt), func(t *testing.T) {
			if got := p.Backoff(tt.attempt); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
	}{
		{"zero attempts", RetryPolicy{MaxAttempts: 0, MaxBackoff: time.Second, Multiplier: 2}},
		{"negative backoff", RetryPolicy{MaxAttempts: 1, InitialBackoff: -1, Multiplier: 2}},
		{"cap below initial", RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Second, MaxBackoff: time.Millisecond, Multiplier: 2}},
		{"shrinking multiplier", RetryPolicy{MaxAttempts: 1, MaxBackoff: time.Second, Multiplier: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestDefaultJitter_Bounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 1000; i++ {
		d := DefaultJitter(base)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("DefaultJitter(%v) = %v, outside ±20%%", base, d)
		}
	}
}

func TestRetrier_Success(t *testing.T) {
	r := NewRetrier(fastPolicy(3), NoJitter, zerolog.Nop())

	attempts, err := r.Do(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetrier_RetriesTransientErrors(t *testing.T) {
	r := NewRetrier(fastPolicy(5), NoJitter, zerolog.Nop())

	var states []RequestState
	r.OnStateChange(func(_ int, s RequestState) { states = append(states, s) })

	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 500, ErrorClass: ErrorClassServer}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	want := []RequestState{
		StatePending,
		StateInFlight, StateTransientFailure,
		StateInFlight, StateTransientFailure,
		StateInFlight, StateSuccess,
	}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestRetrier_NonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"client error", &APIError{StatusCode: 404, ErrorClass: ErrorClassClient}},
		{"decode error", &APIError{StatusCode: 200, ErrorClass: ErrorClassDecode, Err: ErrMalformedResponse}},
		{"unclassified", errors.New("create request")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetrier(fastPolicy(5), NoJitter, zerolog.Nop())

			calls := 0
			attempts, err := r.Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("Do() error = %v, want %v", err, tt.err)
			}
			if errors.Is(err, ErrRetryExhausted) {
				t.Error("non-retryable error must not consume the retry budget")
			}
			if calls != 1 || attempts != 1 {
				t.Errorf("calls = %d, attempts = %d, want 1", calls, attempts)
			}
		})
	}
}

func TestRetrier_Exhausted(t *testing.T) {
	r := NewRetrier(fastPolicy(4), NoJitter, zerolog.Nop())

	last := &APIError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "Service Unavailable"}
	calls := 0
	attempts, err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return last
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Do() error = %v, want ErrRetryExhausted", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Errorf("exhaustion error should wrap the last failure, got %v", err)
	}
	if calls != 4 || attempts != 4 {
		t.Errorf("calls = %d, attempts = %d, want 4", calls, attempts)
	}
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 1}
	r := NewRetrier(policy, NoJitter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Do(ctx, func(context.Context) error {
		return &APIError{StatusCode: 500, ErrorClass: ErrorClassServer}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Do() error = %v, want ErrContextCancelled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}

func TestRetrier_ContextAlreadyCancelled(t *testing.T) {
	r := NewRetrier(fastPolicy(3), NoJitter, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := r.Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrContextCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want ErrContextCancelled wrapping context.Canceled", err)
	}
	if calls != 0 || attempts != 0 {
		t.Errorf("calls = %d, attempts = %d, want 0", calls, attempts)
	}
}

func TestRetrier_AppliesJitter(t *testing.T) {
	var seen []time.Duration
	jitter := func(d time.Duration) time.Duration {
		seen = append(seen, d)
		return 0
	}
	r := NewRetrier(fastPolicy(3), jitter, zerolog.Nop())

	r.Do(context.Background(), func(context.Context) error {
		return &APIError{ErrorClass: ErrorClassNetwork}
	})

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("jitter inputs = %v, want %v", seen, want)
	}
}

func TestRequestState_String(t *testing.T) {
	if got := StateTransientFailure.String(); got != "transient_failure" {
		t.Errorf("String() = %q", got)
	}
	if got := RequestState(42).String(); got != "state(42)" {
		t.Errorf("String() = %q", got)
	}
}
