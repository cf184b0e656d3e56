package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"singlish-bot/api"
	"singlish-bot/config"
	"singlish-bot/dao"
	"singlish-bot/internal/aiclient"
	"singlish-bot/internal/logger"
	"singlish-bot/internal/tracing"
	"singlish-bot/route"
	"singlish-bot/service"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (dao.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		return dao.NewMemoryStore(), nil
	}
	return dao.OpenGorm(cfg.Database.Driver, cfg.Database.DSN)
}

func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.ResultCache, api.HealthCheck, func() error) {
	if !cfg.Redis.Enabled {
		log.Info("response cache disabled")
		return dao.NopCache{}, nil, func() error { return nil }
	}
	client := dao.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	cache := dao.NewResponseCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL, log)
	if err := cache.Ping(ctx); err != nil {
		// the cache is best-effort; keep going and let it recover
		log.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return cache, cache.Ping, cache.Close
}

func newProvider(cfg *config.Config, log *zap.Logger) service.Provider {
	switch cfg.Provider.Kind {
	case config.ProviderHTTP:
		return aiclient.NewClient(cfg.Provider.URL, cfg.Provider.APIKey)
	case config.ProviderOpenAI:
		o := cfg.Provider.OpenAI
		return aiclient.NewOpenAIProvider(o.APIKey, o.Model, o.MaxTokens, o.Temperature, log)
	default:
		return nil
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.Enabled, cfg.Tracing.ServiceName, nil, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	cache, cacheHealth, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	catalog := service.NewCatalog(store, cache, log)
	seeded, err := catalog.Seed(ctx, cfg.Catalog.SeedFile)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	active, _ := catalog.ListActive(ctx)
	log.Info("catalog ready", zap.Int("seeded", seeded), zap.Int("active_intents", len(active)))

	matcher := service.NewMatcher(cfg.Matcher.Cutoff, service.RandomChooser)
	decision := service.NewDecisionLayer(service.DecisionLayerConfig{
		Provider: newProvider(cfg, log),
		Cache:    cache,
		Catalog:  catalog,
		Matcher:  matcher,
		Timeout:  cfg.Provider.Timeout,
		CacheTTL: cfg.Redis.TTL,
		Logger:   log,
	})
	log.Info("decision layer ready",
		zap.String("provider", cfg.Provider.Kind),
		zap.Float64("match_cutoff", matcher.Cutoff()),
		zap.Duration("provider_timeout", cfg.Provider.Timeout),
	)
	sessions := service.NewSessionManager(store, log)
	chatSvc := service.NewChatService(decision, sessions, cfg.Chat.HistoryTurns, log)

	health := map[string]api.HealthCheck{"database": store.Ping}
	if cacheHealth != nil {
		health["redis"] = cacheHealth
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty: every caller is anonymous and admin routes are closed")
	}

	gin.SetMode(cfg.Server.Mode)
	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	engine := route.NewEngine(route.Deps{
		Chat:        chatSvc,
		Catalog:     catalog,
		Sessions:    sessions,
		Analytics:   service.NewAnalyticsService(store),
		Auth:        api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminRole),
		Health:      health,
		CORSOrigins: cfg.Server.CORSOrigins,
		ServiceName: serviceName,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return shutdownTracing(shutdownCtx)
	})
	return g.Wait()
}
