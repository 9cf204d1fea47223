package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestErrorFromHTTPStatusClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		message   string
		wantType  any
		retryable bool
	}{
		{"bad request", 400, "malformed payload", new(*InvalidRequestError), false},
		{"safety block", 400, "blocked by safety settings", new(*ContentFilterError), false},
		{"quota on 422", 422, "billing quota exceeded", new(*QuotaExceededError), false},
		{"unauthorized", 401, "bad token", new(*AuthenticationError), false},
		{"forbidden", 403, "no access", new(*AccessDeniedError), false},
		{"not found", 404, "no such model", new(*NotFoundError), false},
		{"timeout", 408, "slow", new(*RequestTimeoutError), true},
		{"rate limit", 429, "slow down", new(*RateLimitError), true},
		{"server", 503, "overloaded", new(*ServerError), true},
		{"teapot", 418, "short and stout", new(*UnknownHTTPError), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ErrorFromHTTPStatus(tc.status, tc.message, nil)
			if !errors.As(err, tc.wantType) {
				t.Fatalf("got %T, want %T", err, tc.wantType)
			}
			var le Error
			if !errors.As(err, &le) {
				t.Fatal("error does not implement the Error interface")
			}
			if le.Retryable() != tc.retryable {
				t.Errorf("Retryable() = %v, want %v", le.Retryable(), tc.retryable)
			}
			if le.StatusCode() != tc.status {
				t.Errorf("StatusCode() = %d, want %d", le.StatusCode(), tc.status)
			}
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(ErrorFromHTTPStatus(429, "", nil)) {
		t.Error("429 should be a rate limit")
	}
	if !IsRateLimit(ErrorFromHTTPStatus(422, "quota exhausted", nil)) {
		t.Error("quota exhaustion should count as a rate limit")
	}
	if IsRateLimit(ErrorFromHTTPStatus(500, "", nil)) {
		t.Error("500 is not a rate limit")
	}
}

func TestIsRetryableRejectsCancellation(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Error("cancellation must never be retryable")
	}
	if IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline expiry must never be retryable")
	}
	if IsRetryable(errors.New("opaque")) {
		t.Error("untyped errors are not retryable")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if d := ParseRetryAfter("30", now); d == nil || *d != 30*time.Second {
		t.Errorf("seconds form: got %v", d)
	}
	if d := ParseRetryAfter("Sun, 01 Jun 2025 12:00:45 GMT", now); d == nil || *d != 45*time.Second {
		t.Errorf("http-date form: got %v", d)
	}
	if d := ParseRetryAfter("Sun, 01 Jun 2025 11:00:00 GMT", now); d == nil || *d != 0 {
		t.Errorf("past date should clamp to zero, got %v", d)
	}
	if d := ParseRetryAfter("garbage", now); d != nil {
		t.Errorf("unparseable value should yield nil, got %v", d)
	}
	if d := ParseRetryAfter("", now); d != nil {
		t.Errorf("empty value should yield nil, got %v", d)
	}
}

func TestContextWindowFor(t *testing.T) {
	if w := ContextWindowFor("gemini-1.5-pro-latest"); w != 2_097_152 {
		t.Errorf("gemini-1.5-pro window = %d", w)
	}
	if w := ContextWindowFor("gemini-2.5-flash"); w != 1_048_576 {
		t.Errorf("gemini-2.5-flash window = %d", w)
	}
	if w := ContextWindowFor("some-unknown-model"); w != DefaultContextWindow {
		t.Errorf("unknown model window = %d, want default", w)
	}
}
