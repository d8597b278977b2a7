// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(ctx context.Context) error { return NewTransientError("down", nil) }
func passing(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "aux", FailureThreshold: 2, Cooldown: time.Hour})

	_ = cb.Execute(context.Background(), failing)
	if cb.State() != StateClosed {
		t.Fatalf("expected CLOSED after one failure, got %v", cb.State())
	}
	_ = cb.Execute(context.Background(), failing)
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after two failures, got %v", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("open breaker must not call through")
	}
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("open breaker error should not be retried")
	}
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "aux", FailureThreshold: 1, Cooldown: time.Hour})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return NewPermanentError("bad request", nil)
	})
	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []BreakerState
	cb := NewCircuitBreaker(BreakerConfig{
		Name:             "aux",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange: func(name string, from, to BreakerState) {
			transitions = append(transitions, to)
		},
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failing)
	now = now.Add(2 * time.Minute)
	if err := cb.Execute(context.Background(), passing); err != nil {
		t.Fatalf("trial call should pass through: %v", err)
	}

	want := []BreakerState{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %v, got %v", i, want[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenPermanentErrorReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(BreakerConfig{
		Name:             "aux",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failing)
	now = now.Add(2 * time.Minute)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return NewPermanentError("bad response", nil)
	})
	if cb.State() != StateOpen {
		t.Fatalf("expected OPEN after a failed trial call, got %v", cb.State())
	}

	// cooldown restarts from the failed trial call
	now = now.Add(30 * time.Second)
	if err := cb.Execute(context.Background(), passing); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen during the new cooldown, got %v", err)
	}
	now = now.Add(time.Minute)
	if err := cb.Execute(context.Background(), passing); err != nil {
		t.Fatalf("trial call should pass through: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected CLOSED after a successful trial call, got %v", cb.State())
	}
}

func TestRetryWithCircuitBreaker_FailsFastWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "aux", FailureThreshold: 1, Cooldown: time.Hour})
	_ = cb.Execute(context.Background(), failing)

	calls := 0
	_, err := RetryWithCircuitBreaker(context.Background(), RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
		cb, func(ctx context.Context) (float64, error) {
			calls++
			return 1, nil
		})
	if err == nil {
		t.Fatal("expected error from open breaker")
	}
	if calls != 0 {
		t.Errorf("expected no calls, got %d", calls)
	}
}
