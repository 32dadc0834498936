package aprsfi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetryWithBackoffResult tests basic retry logic.
func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		got, err := RetryWithBackoffResult(context.Background(), DefaultRetryConfig(), func() (int, error) {
			attempts++
			return 42, nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if got != 42 {
			t.Errorf("Expected 42, got %d", got)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Zero value makes a single attempt", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("boom")
		_, err := RetryWithBackoffResult(context.Background(), RetryConfig{}, func() (int, error) {
			attempts++
			return 0, sentinel
		})

		if !errors.Is(err, sentinel) {
			t.Errorf("Expected sentinel error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		var retried []int
		cfg := fastRetry(3)
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		}

		_, err := RetryWithBackoffResult(context.Background(), cfg, func() (string, error) {
			attempts++
			if attempts < 3 {
				return "", &StatusError{StatusCode: 503}
			}
			return "ok", nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
		if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
			t.Errorf("Expected OnRetry for attempts 1 and 2, got %v", retried)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		sentinel := &StatusError{StatusCode: 502}
		_, err := RetryWithBackoffResult(context.Background(), fastRetry(3), func() (int, error) {
			attempts++
			return 0, sentinel
		})

		if err == nil {
			t.Fatal("Expected error after max retries")
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("Expected wrapped sentinel, got %v", err)
		}
		// initial + 3 retries
		if attempts != 4 {
			t.Errorf("Expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("API errors are not retried", func(t *testing.T) {
		attempts := 0
		_, err := RetryWithBackoffResult(context.Background(), fastRetry(3), func() (int, error) {
			attempts++
			return 0, &APIError{Result: "fail", Description: "bad key"}
		})

		if _, ok := IsAPIError(err); !ok {
			t.Errorf("Expected APIError, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Respects Retry-After", func(t *testing.T) {
		var delays []time.Duration
		cfg := fastRetry(1)
		cfg.RespectRetryAfter = true
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		}

		_, _ = RetryWithBackoffResult(context.Background(), cfg, func() (int, error) {
			return 0, &RateLimitError{StatusCode: 429, RetryAfter: 15 * time.Millisecond}
		})

		if len(delays) != 1 || delays[0] != 15*time.Millisecond {
			t.Errorf("Expected a single 15ms delay, got %v", delays)
		}
	})

	t.Run("Permanent errors are not retried", func(t *testing.T) {
		for _, perm := range []error{
			errors.New("parse response: unexpected end of JSON input"),
			&StatusError{StatusCode: 404},
			fmt.Errorf("http request: %w", context.Canceled),
		} {
			attempts := 0
			_, err := RetryWithBackoffResult(context.Background(), fastRetry(3), func() (int, error) {
				attempts++
				return 0, perm
			})
			if err != perm {
				t.Errorf("Expected %v returned as is, got %v", perm, err)
			}
			if attempts != 1 {
				t.Errorf("Expected 1 attempt for %v, got %d", perm, attempts)
			}
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0

		_, err := RetryWithBackoffResult(ctx, RetryConfig{MaxRetries: 5, InitialDelay: time.Second}, func() (int, error) {
			attempts++
			cancel()
			return 0, &StatusError{StatusCode: 503}
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
		}
	})
}

// TestIsRetryable tests error classification.
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Rate limited", &RateLimitError{StatusCode: 429}, true},
		{"Server error", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 503}), true},
		{"Client error", &StatusError{StatusCode: 400}, false},
		{"API error", &APIError{Result: "fail"}, false},
		{"Transport error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"Cancelled", context.Canceled, false},
		{"Decode error", errors.New("parse response: invalid character"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
