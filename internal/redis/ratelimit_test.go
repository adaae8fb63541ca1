package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newTestRateLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := NewFromAddr(mr.Addr(), zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	return NewRateLimiter(client, zap.NewNop(), cfg)
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimitConfig{Limit: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := rl.Allow(ctx, "actor:alice")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if want := 5 - i - 1; res.Remaining != want {
			t.Errorf("request %d: expected remaining %d, got %d", i, want, res.Remaining)
		}
	}
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimitConfig{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := rl.Allow(ctx, "actor:alice"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	res, err := rl.Allow(ctx, "actor:alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("request over the limit should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", res.Remaining)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimitConfig{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	if _, err := rl.Allow(ctx, "actor:alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := rl.Allow(ctx, "actor:alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("alice should be throttled")
	}

	res, err = rl.Allow(ctx, "actor:bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("bob's quota should be untouched by alice")
	}
}
