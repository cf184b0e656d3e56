package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"singlish-bot/dao"
	"singlish-bot/internal/aiclient"
	"singlish-bot/internal/logger"
	"singlish-bot/internal/tracing"
	"singlish-bot/model"
	"singlish-bot/utils"
)

const (
	DefaultProviderTimeout = 5 * time.Second
	DefaultCacheTTL        = time.Hour
)

type Provider interface {
	Predict(ctx context.Context, req model.PredictRequest) (aiclient.Prediction, error)
}

type CatalogSource interface {
	ListActive(ctx context.Context) ([]model.Intent, error)
}

// versioned is implemented by catalogs that report write generations.
type versioned interface {
	Generation() uint64
}

type DecisionLayerConfig struct {
	// Provider may be nil, in which case resolution starts at the cache.
	Provider Provider
	Cache    ResultCache
	Catalog  CatalogSource
	Matcher  *Matcher
	Timeout  time.Duration
	CacheTTL time.Duration
	Choose   Chooser
	Logger   *zap.Logger
}

// DecisionLayer resolves a message to a reply. It tries the remote
// provider, then the cache, then the local matcher, and finally a canned
// default. It never fails.
type DecisionLayer struct {
	provider Provider
	cache    ResultCache
	catalog  CatalogSource
	matcher  *Matcher
	timeout  time.Duration
	cacheTTL time.Duration
	choose   Chooser
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewDecisionLayer(cfg DecisionLayerConfig) *DecisionLayer {
	d := &DecisionLayer{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		catalog:  cfg.Catalog,
		matcher:  cfg.Matcher,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		choose:   cfg.Choose,
		log:      cfg.Logger,
		tracer:   otel.Tracer(tracing.TracerName),
		now:      time.Now,
	}
	if d.cache == nil {
		d.cache = dao.NopCache{}
	}
	if d.choose == nil {
		d.choose = RandomChooser
	}
	if d.matcher == nil {
		d.matcher = NewMatcher(DefaultCutoff, d.choose)
	}
	if d.timeout <= 0 {
		d.timeout = DefaultProviderTimeout
	}
	if d.cacheTTL <= 0 {
		d.cacheTTL = DefaultCacheTTL
	}
	d.log = logger.Named(d.log, "decision_layer")
	return d
}

type DecisionRequest struct {
	Message     string
	SessionID   string
	UserID      string
	RecentTurns []model.Turn
}

// Decide resolves one message. Latency covers every stage attempted.
func (d *DecisionLayer) Decide(ctx context.Context, req DecisionRequest) (result model.ResolutionResult) {
	start := d.now()
	ctx, span := d.tracer.Start(ctx, "decision.decide")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("resolution panicked, using default reply",
				zap.Any("panic", r), zap.String("session_id", req.SessionID))
			span.SetStatus(codes.Error, "panic")
			result = d.defaultResult()
		}
		result.Latency = d.now().Sub(start)
		span.SetAttributes(
			attribute.String("intent", result.Intent),
			attribute.Float64("confidence", result.Confidence),
			attribute.String("strategy", string(result.Strategy)),
		)
	}()

	if res, ok := d.remote(ctx, req); ok {
		return res
	}
	return d.local(ctx, req)
}

func (d *DecisionLayer) remote(ctx context.Context, req DecisionRequest) (res model.ResolutionResult, ok bool) {
	if d.provider == nil {
		return res, false
	}
	ctx, span := d.tracer.Start(ctx, "decision.remote")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("provider panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			res, ok = model.ResolutionResult{}, false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	turns := req.RecentTurns
	if turns == nil {
		turns = []model.Turn{}
	}
	pred, err := d.provider.Predict(ctx, model.PredictRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Context: model.PredictContext{
			RecentTurns: turns,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		d.log.Warn("provider failed, falling back to local match",
			zap.Error(err), zap.String("session_id", req.SessionID))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		return res, false
	}
	return model.ResolutionResult{
		Response:   pred.Response,
		Intent:     pred.Intent,
		Confidence: pred.Confidence,
		Strategy:   model.StrategyRemote,
	}, true
}

func (d *DecisionLayer) local(ctx context.Context, req DecisionRequest) model.ResolutionResult {
	ctx, span := d.tracer.Start(ctx, "decision.local")
	defer span.End()

	key := utils.NormalizeInput(req.Message)
	if cached, ok := d.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		cached.Strategy = model.StrategyCachedRule
		return cached
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	if d.catalog == nil {
		d.log.Error("no catalog configured, using default reply")
		return d.defaultResult()
	}
	gen, hasGen := d.generation()
	intents, err := d.catalog.ListActive(ctx)
	if err != nil {
		d.log.Error("catalog unavailable, using default reply",
			zap.Error(fmt.Errorf("list active intents: %w", err)), zap.String("session_id", req.SessionID))
		span.RecordError(err)
		return d.defaultResult()
	}

	res := d.matcher.Match(key, intents)
	changed := func() bool {
		cur, _ := d.generation()
		return hasGen && cur != gen
	}
	// a write that lands after the match has its sweep racing this Put
	if changed() {
		return res
	}
	d.cache.Put(ctx, key, res, d.cacheTTL)
	if changed() {
		d.cache.Delete(ctx, key)
	}
	return res
}

func (d *DecisionLayer) generation() (uint64, bool) {
	v, ok := d.catalog.(versioned)
	if !ok {
		return 0, false
	}
	return v.Generation(), true
}

func (d *DecisionLayer) defaultResult() model.ResolutionResult {
	return model.ResolutionResult{
		Response:   pick(d.choose, DefaultResponses),
		Intent:     model.IntentError,
		Confidence: 0,
		Strategy:   model.StrategyDefault,
	}
}
