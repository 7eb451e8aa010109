package worker

import (
	"context"
	"testing"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://acme.my.salesforce.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also pass immediately
	if err := limiter.Wait(ctx, "https://api.openai.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	host := "https://acme.my.salesforce.com"

	if err := limiter.Wait(ctx, host); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1, token consumed
	if limiter.Allow(host) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Different host has its own bucket
	if !limiter.Allow("https://other.my.salesforce.com") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	host := "slow.example.com"

	limiter.SetHostRate(host, 0.1, 1)

	if !limiter.Allow("https://" + host) {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("https://" + host) {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("https://fast.example.com") {
		t.Errorf("other host should pass")
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("https://acme.my.salesforce.com/services"); got != "acme.my.salesforce.com" {
		t.Errorf("expected host, got %q", got)
	}
	// Bare hosts pass through
	if got := hostOf("acme.my.salesforce.com"); got != "acme.my.salesforce.com" {
		t.Errorf("expected passthrough, got %q", got)
	}
}
