package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"singlish-bot/dao"
	"singlish-bot/model"
)

var errBoom = errors.New("boom")

type memCache struct {
	mu          sync.Mutex
	entries     map[string]model.ResolutionResult
	gets, puts  int
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]model.ResolutionResult)}
}

func (c *memCache) Get(_ context.Context, key string) (model.ResolutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	r, ok := c.entries[key]
	return r, ok
}

func (c *memCache) Put(_ context.Context, key string, r model.ResolutionResult, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = r
}

func (c *memCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memCache) InvalidateAll(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	n := len(c.entries)
	c.entries = make(map[string]model.ResolutionResult)
	return n, nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// brokenIntents fails every read, standing in for an unreachable database.
type brokenIntents struct{ dao.IntentRepo }

func (brokenIntents) ListIntents(context.Context) ([]model.Intent, error) { return nil, errBoom }

func (brokenIntents) CountIntents(context.Context) (int64, error) { return 0, errBoom }

// brokenSessions fails every write.
type brokenSessions struct{ dao.SessionRepo }

func (brokenSessions) CreateSession(context.Context, *model.Session) error { return errBoom }

func (brokenSessions) GetSession(context.Context, string) (*model.Session, error) {
	return nil, model.ErrNotFound
}

func (brokenSessions) SaveTurn(context.Context, dao.TurnRecord) error { return errBoom }

func (brokenSessions) RecentMessages(context.Context, string, int) ([]model.Message, error) {
	return nil, errBoom
}

// flakyIntents fails the next ListIntents call after failNext is set.
type flakyIntents struct {
	dao.IntentRepo
	mu       sync.Mutex
	failNext bool
}

func (f *flakyIntents) ListIntents(ctx context.Context) ([]model.Intent, error) {
	f.mu.Lock()
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return f.IntentRepo.ListIntents(ctx)
}

func (f *flakyIntents) failOnce() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = true
}

// editingCatalog runs edit once, right after the first snapshot read.
type editingCatalog struct {
	*Catalog
	once sync.Once
	edit func()
}

func (e *editingCatalog) ListActive(ctx context.Context) ([]model.Intent, error) {
	intents, err := e.Catalog.ListActive(ctx)
	e.once.Do(e.edit)
	return intents, err
}
