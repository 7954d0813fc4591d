package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/config"
	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/handler"
	"github.com/boddenberg/zenith-finance-go/internal/infra/cache"
	"github.com/boddenberg/zenith-finance-go/internal/infra/events"
	"github.com/boddenberg/zenith-finance-go/internal/infra/gemini"
	"github.com/boddenberg/zenith-finance-go/internal/infra/local"
	"github.com/boddenberg/zenith-finance-go/internal/infra/observability"
	"github.com/boddenberg/zenith-finance-go/internal/infra/resilience"
	"github.com/boddenberg/zenith-finance-go/internal/infra/supabase"
	"github.com/boddenberg/zenith-finance-go/internal/ledger"
	"github.com/boddenberg/zenith-finance-go/internal/notify"
	"github.com/boddenberg/zenith-finance-go/internal/port"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

// backend is a persistence strategy that can also report its health.
type backend interface {
	port.Persistence
	handler.Pinger
}

// app is everything a command needs, built once from the configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	repo        backend
	queue       *notify.Queue
	coordinator *service.Coordinator

	closers []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	// --- Persistence ---
	repo, err := openBackend(cfg, a.metrics, logger)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	if c, ok := repo.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	// --- Ledger events ---
	var publisher port.EventPublisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("ledger events disabled", zap.Error(err))
		} else {
			publisher = p
			a.closers = append(a.closers, p.Close)
			logger.Info("publishing ledger events", zap.String("exchange", cfg.AMQPExchange))
		}
	}

	// --- Category suggestion ---
	gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("category suggestion disabled", zap.Error(err))
		gen = nil
	}
	suggestions := cache.New[string](cfg.CacheTTL)
	a.closers = append(a.closers, func() error { suggestions.Close(); return nil })
	suggester := gemini.NewSuggester(gen, cfg.Categories, suggestions,
		resilience.NewCircuitBreaker("gemini", logger), logger, a.metrics)

	// --- Notifications ---
	a.queue = notify.New(notify.WithLifetime(cfg.NotificationTTL))
	a.closers = append(a.closers, func() error { a.queue.Close(); return nil })
	a.queue.Subscribe(func(list []domain.Notification) {
		logger.Debug("notifications changed", zap.Int("visible", len(list)))
	})

	// --- Core ---
	store := ledger.New()
	session := service.NewSession(store)
	session.OnActiveAccountChanged(func(id string) {
		logger.Info("active account changed", zap.String("account_id", id))
	})
	a.coordinator = service.NewCoordinator(repo, store, session, a.queue, a.metrics, logger,
		service.WithSuggester(suggester),
		service.WithEvents(publisher),
		service.WithCategories(cfg.Categories),
	)
	return a, nil
}

func openBackend(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		logger.Info("using local sqlite backend", zap.String("path", cfg.LocalDBPath))
		return local.Open(cfg.LocalDBPath, cfg.LocalSnapshotKey, logger)

	case config.BackendSupabase:
		client, err := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			supabase.Options{
				BaseURL:     cfg.SupabaseURL,
				AnonKey:     cfg.SupabaseAnonKey,
				AccessToken: cfg.SupabaseAccessToken,
				JWTSecret:   cfg.SupabaseJWTSecret,
			},
			resilience.NewCircuitBreaker("supabase", logger),
			resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff},
			logger,
			metrics,
		)
		if err != nil {
			return nil, err
		}
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
			zap.String("user_id", client.UserID()),
		)
		return client, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) router() http.Handler {
	return handler.NewRouter(a.coordinator, handler.Options{
		Backend:       a.cfg.Backend,
		Pinger:        a.repo,
		Notifications: a.queue,
		Metrics:       a.metrics,
		Logger:        a.logger,
	})
}
