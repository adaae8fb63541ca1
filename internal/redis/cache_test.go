package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := NewFromAddr(mr.Addr(), zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, zap.NewNop(), ttl), mr
}

type stats struct {
	Campaigns int `json:"campaigns"`
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	computes := 0
	compute := func(ctx context.Context) (stats, error) {
		computes++
		return stats{Campaigns: 7}, nil
	}

	got, err := GetOrCompute(ctx, cache, "campaign_stats", compute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got.Campaigns != 7 {
		t.Errorf("expected 7 campaigns, got %d", got.Campaigns)
	}
	if computes != 1 {
		t.Fatalf("expected 1 compute, got %d", computes)
	}

	// Second call must come from the cache
	got, err = GetOrCompute(ctx, cache, "campaign_stats", compute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got.Campaigns != 7 {
		t.Errorf("expected 7 campaigns from cache, got %d", got.Campaigns)
	}
	if computes != 1 {
		t.Fatalf("expected cached value, compute ran %d times", computes)
	}
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	boom := errors.New("query failed")
	computes := 0

	_, err := GetOrCompute(ctx, cache, "campaign_stats", func(ctx context.Context) (stats, error) {
		computes++
		return stats{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got: %v", err)
	}

	// The error must not have been cached
	got, err := GetOrCompute(ctx, cache, "campaign_stats", func(ctx context.Context) (stats, error) {
		computes++
		return stats{Campaigns: 3}, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got.Campaigns != 3 {
		t.Errorf("expected 3 campaigns, got %d", got.Campaigns)
	}
	if computes != 2 {
		t.Fatalf("expected 2 computes, got %d", computes)
	}
}

func TestGetOrCompute_EntryExpires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	computes := 0
	compute := func(ctx context.Context) (stats, error) {
		computes++
		return stats{Campaigns: computes}, nil
	}

	if _, err := GetOrCompute(ctx, cache, "campaign_stats", compute); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := GetOrCompute(ctx, cache, "campaign_stats", compute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if computes != 2 {
		t.Fatalf("expected recompute after TTL, compute ran %d times", computes)
	}
	if got.Campaigns != 2 {
		t.Errorf("expected fresh value 2, got %d", got.Campaigns)
	}
}

func TestInvalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	computes := 0
	compute := func(ctx context.Context) (stats, error) {
		computes++
		return stats{Campaigns: computes}, nil
	}

	if _, err := GetOrCompute(ctx, cache, "campaign_stats", compute); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := cache.Invalidate(ctx, "campaign_stats"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	got, err := GetOrCompute(ctx, cache, "campaign_stats", compute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if computes != 2 {
		t.Fatalf("expected recompute after invalidation, compute ran %d times", computes)
	}
	if got.Campaigns != 2 {
		t.Errorf("expected fresh value 2, got %d", got.Campaigns)
	}
}

func TestGetOrCompute_RedisDownFallsThrough(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	mr.Close()

	got, err := GetOrCompute(ctx, cache, "campaign_stats", func(ctx context.Context) (stats, error) {
		return stats{Campaigns: 9}, nil
	})
	if err != nil {
		t.Fatalf("expected compute fallback, got: %v", err)
	}
	if got.Campaigns != 9 {
		t.Errorf("expected 9 campaigns, got %d", got.Campaigns)
	}
}

func TestGetOrCompute_DiscardsCorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := mr.Set("cache:campaign_stats", "not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := GetOrCompute(ctx, cache, "campaign_stats", func(ctx context.Context) (stats, error) {
		return stats{Campaigns: 4}, nil
	})
	if err != nil {
		t.Fatalf("expected recompute for corrupt entry, got: %v", err)
	}
	if got.Campaigns != 4 {
		t.Errorf("expected 4 campaigns, got %d", got.Campaigns)
	}
}
