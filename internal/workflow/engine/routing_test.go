package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeRoutingStore struct {
	rules repository.RoutingRules
	reads int
	err   error
}

func (s *fakeRoutingStore) GetRoutingRules(ctx context.Context) (repository.RoutingRules, error) {
	s.reads++
	if s.err != nil {
		return repository.RoutingRules{}, s.err
	}
	return s.rules, nil
}

func (s *fakeRoutingStore) SetRoutingRules(ctx context.Context, rules repository.RoutingRules) error {
	if s.err != nil {
		return s.err
	}
	s.rules = rules
	return nil
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestRoutingCache_SecondReadHitsCache(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &fakeRoutingStore{rules: repository.RoutingRules{
		HighScoreRep: "Victor",
		DefaultReps:  []string{"Alex", "Brooke"},
	}}
	cache := NewRoutingCache(store, rdb, time.Minute, logger.New("development"))
	ctx := context.Background()

	first, err := cache.Rules(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.HighScoreRep != "Victor" {
		t.Fatalf("expected Victor, got %q", first.HighScoreRep)
	}

	second, err := cache.Rules(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.DefaultReps) != 2 {
		t.Fatalf("expected cached reps, got %v", second.DefaultReps)
	}
	if store.reads != 1 {
		t.Fatalf("expected a single store read, got %d", store.reads)
	}
}

func TestRoutingCache_NilRedisReadsStoreEveryTime(t *testing.T) {
	store := &fakeRoutingStore{rules: repository.RoutingRules{DefaultReps: []string{"Alex"}}}
	cache := NewRoutingCache(store, nil, time.Minute, logger.New("development"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.Rules(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.reads != 3 {
		t.Fatalf("expected 3 store reads without redis, got %d", store.reads)
	}
}

func TestRoutingCache_UpdateInvalidates(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &fakeRoutingStore{rules: repository.RoutingRules{HighScoreRep: "Victor"}}
	cache := NewRoutingCache(store, rdb, time.Minute, logger.New("development"))
	ctx := context.Background()

	if _, err := cache.Rules(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := repository.RoutingRules{HighScoreRep: "Dana"}
	if err := cache.Update(ctx, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules, err := cache.Rules(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.HighScoreRep != "Dana" {
		t.Fatalf("expected updated rules after invalidation, got %q", rules.HighScoreRep)
	}
}

func TestRoutingCache_StoreErrorPropagates(t *testing.T) {
	store := &fakeRoutingStore{err: errors.New("settings table gone")}
	cache := NewRoutingCache(store, nil, time.Minute, logger.New("development"))

	if _, err := cache.Rules(context.Background()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestRoutingCache_RedisDownFallsBackToStore(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	cleanup() // redis is unreachable from the start

	store := &fakeRoutingStore{rules: repository.RoutingRules{DefaultReps: []string{"Alex"}}}
	cache := NewRoutingCache(store, rdb, time.Minute, logger.New("development"))

	rules, err := cache.Rules(context.Background())
	if err != nil {
		t.Fatalf("expected fallback to the store, got %v", err)
	}
	if len(rules.DefaultReps) != 1 {
		t.Fatalf("expected store rules, got %v", rules.DefaultReps)
	}
}
