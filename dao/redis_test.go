package dao

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"singlish-bot/model"
)

func newTestCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewResponseCache(client, "intent:", time.Hour, zap.NewNop()), mr
}

func sampleResult() model.ResolutionResult {
	return model.ResolutionResult{
		Response:   "Hari honda machan!",
		Intent:     "greeting",
		Confidence: 0.875,
		Strategy:   model.StrategyCachedRule,
		Latency:    3 * time.Millisecond,
	}
}

func TestResponseCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "kohomda"); ok {
		t.Fatalf("Get before Put: expected miss")
	}

	want := sampleResult()
	cache.Put(ctx, "kohomda", want, 0)

	got, ok := cache.Get(ctx, "kohomda")
	if !ok {
		t.Fatalf("Get after Put: expected hit")
	}
	if got != want {
		t.Fatalf("round trip: want=%+v got=%+v", want, got)
	}
	if !mr.Exists("intent:kohomda") {
		t.Fatalf("expected namespaced key intent:kohomda")
	}
	if ttl := mr.TTL("intent:kohomda"); ttl != time.Hour {
		t.Fatalf("default ttl: want=1h got=%v", ttl)
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "bye", sampleResult(), time.Minute)
	mr.FastForward(59 * time.Second)
	if _, ok := cache.Get(ctx, "bye"); !ok {
		t.Fatalf("Get before expiry: expected hit")
	}
	mr.FastForward(2 * time.Second)
	if _, ok := cache.Get(ctx, "bye"); ok {
		t.Fatalf("Get after expiry: expected miss")
	}
}

func TestResponseCacheInvalidateAllKeepsOtherNamespaces(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	for _, in := range []string{"hi", "bye", "oya kawda", "thanks machan"} {
		cache.Put(ctx, in, sampleResult(), 0)
	}
	if err := mr.Set("session:abc", "keep"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}

	n, err := cache.InvalidateAll(ctx)
	if err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if n != 4 {
		t.Fatalf("deleted: want=4 got=%d", n)
	}
	if _, ok := cache.Get(ctx, "hi"); ok {
		t.Fatalf("Get after InvalidateAll: expected miss")
	}
	if !mr.Exists("session:abc") {
		t.Fatalf("InvalidateAll removed a key outside its prefix")
	}
}

func TestResponseCacheCorruptEntryIsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	if err := mr.Set("intent:broken", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := cache.Get(context.Background(), "broken"); ok {
		t.Fatalf("corrupt entry: expected miss")
	}
	if mr.Exists("intent:broken") {
		t.Fatalf("corrupt entry should be dropped")
	}
}

func TestResponseCacheUnavailableIsBestEffort(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cache.Put(ctx, "hi", sampleResult(), 0)
	if _, ok := cache.Get(ctx, "hi"); ok {
		t.Fatalf("Get with redis down: expected miss")
	}
	if _, err := cache.InvalidateAll(ctx); err == nil {
		t.Fatalf("InvalidateAll with redis down: expected error")
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Fatalf("escapeGlob: got=%q", got)
	}
}

func TestResponseCacheDelete(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "kohomda", sampleResult(), 0)
	cache.Put(ctx, "oya kawda", sampleResult(), 0)
	cache.Delete(ctx, "kohomda")

	if mr.Exists("intent:kohomda") {
		t.Fatalf("deleted key still present")
	}
	if !mr.Exists("intent:oya kawda") {
		t.Fatalf("unrelated key removed")
	}
	// deleting a missing key is fine
	cache.Delete(ctx, "kohomda")
}
