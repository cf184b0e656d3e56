package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"singlish-bot/dao"
	"singlish-bot/internal/logger"
	"singlish-bot/model"
)

// ResultCache is the response cache seen by the service layer.
type ResultCache interface {
	Get(ctx context.Context, input string) (model.ResolutionResult, bool)
	Put(ctx context.Context, input string, result model.ResolutionResult, ttl time.Duration)
	Delete(ctx context.Context, input string)
	InvalidateAll(ctx context.Context) (int, error)
}

// Catalog serves the active intents from an immutable snapshot and
// applies administrative writes to the underlying repository. Writers are
// serialised; readers never block.
type Catalog struct {
	repo  dao.IntentRepo
	cache ResultCache
	log   *zap.Logger

	mu       sync.Mutex
	snapshot atomic.Pointer[[]model.Intent]

	// bumped after every committed write, before the cache sweep
	generation atomic.Uint64
}

func NewCatalog(repo dao.IntentRepo, cache ResultCache, log *zap.Logger) *Catalog {
	if cache == nil {
		cache = dao.NopCache{}
	}
	return &Catalog{
		repo:  repo,
		cache: cache,
		log:   logger.Named(log, "catalog"),
	}
}

// Reload rebuilds the snapshot from the repository.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloadLocked(ctx)
}

func (c *Catalog) reloadLocked(ctx context.Context) error {
	all, err := c.repo.ListIntents(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrCatalogUnavailable, err)
	}
	active := make([]model.Intent, 0, len(all))
	for _, in := range all {
		if in.Active {
			active = append(active, in)
		}
	}
	dao.SortIntents(active)
	c.snapshot.Store(&active)
	return nil
}

// ListActive returns the current snapshot. The slice is shared and must
// not be modified.
func (c *Catalog) ListActive(ctx context.Context) ([]model.Intent, error) {
	if snap := c.snapshot.Load(); snap != nil {
		return *snap, nil
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return *c.snapshot.Load(), nil
}

// Generation changes whenever a write commits. Results computed from a
// snapshot read under an older generation must not be cached.
func (c *Catalog) Generation() uint64 {
	return c.generation.Load()
}

func (c *Catalog) List(ctx context.Context, includeInactive bool) ([]model.Intent, error) {
	if !includeInactive {
		active, err := c.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return append([]model.Intent(nil), active...), nil
	}
	all, err := c.repo.ListIntents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCatalogUnavailable, err)
	}
	return all, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*model.Intent, error) {
	return c.repo.GetIntent(ctx, id)
}

func fromInput(in model.IntentInput) model.Intent {
	trimAll := func(ss []string) []string {
		out := make([]string, 0, len(ss))
		for _, s := range ss {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	}
	return model.Intent{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Phrases:     trimAll(in.Phrases),
		Responses:   trimAll(in.Responses),
		Category:    strings.TrimSpace(in.Category),
		Priority:    in.Priority,
	}
}

func (c *Catalog) Create(ctx context.Context, in model.IntentInput) (*model.Intent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	intent := fromInput(in)
	intent.Active = true

	err := c.mutate(ctx, "create", func() error {
		return c.repo.CreateIntent(ctx, &intent)
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// Update replaces the intent's fields. A nil Active keeps the current state.
func (c *Catalog) Update(ctx context.Context, id string, in model.IntentInput) (*model.Intent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var intent model.Intent
	err := c.mutate(ctx, "update", func() error {
		cur, err := c.repo.GetIntent(ctx, id)
		if err != nil {
			return err
		}
		intent = fromInput(in)
		intent.ID = cur.ID
		intent.Active = cur.Active
		if in.Active != nil {
			intent.Active = *in.Active
		}
		return c.repo.UpdateIntent(ctx, &intent)
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// SoftDelete deactivates the intent. Deactivating an inactive intent is a no-op.
func (c *Catalog) SoftDelete(ctx context.Context, id string) error {
	return c.mutate(ctx, "deactivate", func() error {
		cur, err := c.repo.GetIntent(ctx, id)
		if err != nil {
			return err
		}
		if !cur.Active {
			return nil
		}
		cur.Active = false
		return c.repo.UpdateIntent(ctx, cur)
	})
}

// mutate runs write under the writer lock, then republishes the snapshot
// and empties the response cache.
func (c *Catalog) mutate(ctx context.Context, op string, write func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := write(); err != nil {
		return err
	}
	if err := c.reloadLocked(ctx); err != nil {
		// drop the pre-write snapshot so the next read goes back to the repository
		c.snapshot.Store(nil)
		c.log.Error("reload after write failed", zap.String("op", op), zap.Error(err))
	}
	c.generation.Add(1)
	n, err := c.cache.InvalidateAll(ctx)
	if err != nil {
		c.log.Warn("cache invalidation failed", zap.String("op", op), zap.Error(err))
	} else {
		c.log.Info("catalog changed", zap.String("op", op), zap.Int("cache_keys_dropped", n))
	}
	return nil
}

// Seed imports the intents in path when the repository is empty. It returns
// the number of intents created.
func (c *Catalog) Seed(ctx context.Context, path string) (int, error) {
	n, err := c.repo.CountIntents(ctx)
	if err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	if n > 0 {
		return 0, c.Reload(ctx)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		c.log.Warn("seed file missing, starting with an empty catalog", zap.String("path", path))
		return 0, c.Reload(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var cfg model.IntentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, in := range cfg.Intents {
		input := model.IntentInput{
			Name:        in.Name,
			Description: in.Description,
			Phrases:     in.Phrases,
			Responses:   in.Responses,
			Category:    in.Category,
			Priority:    in.Priority,
		}
		if err := input.Validate(); err != nil {
			return created, fmt.Errorf("seed intent %q: %w", in.Name, err)
		}
		intent := fromInput(input)
		intent.Active = in.Active
		if err := c.repo.CreateIntent(ctx, &intent); err != nil {
			return created, fmt.Errorf("seed intent %q: %w", in.Name, err)
		}
		created++
	}
	c.log.Info("catalog seeded", zap.Int("intents", created), zap.String("path", path))
	return created, c.Reload(ctx)
}
