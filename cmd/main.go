package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/freeroute/internal/config"
	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/httpserver"
	"github.com/davidbz/freeroute/internal/httpserver/middleware"
	"github.com/davidbz/freeroute/internal/observability"
	"github.com/davidbz/freeroute/internal/provider/echo"
	"github.com/davidbz/freeroute/internal/provider/openrouter"
	"github.com/davidbz/freeroute/internal/store/memory"
	redisstore "github.com/davidbz/freeroute/internal/store/redis"
)

const (
	shutdownTimeout  = 10 * time.Second
	redisDialTimeout = 5 * time.Second
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server, catalog *domain.CatalogService) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Warm the catalog; a failure only delays model selection to the first request.
		if warmErr := catalog.Refresh(ctx); warmErr != nil {
			observability.FromContext(ctx).Warn("initial catalog refresh failed", observability.Error(warmErr))
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.Start()
		}()

		select {
		case startErr := <-serveErr:
			return startErr
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func(logger *zap.Logger) domain.EventPublisher {
		return observability.NewEventBus(logger)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Transport
	if err := container.Provide(func(cfg *config.Config) (domain.Transport, error) {
		switch cfg.Transport {
		case config.TransportEcho:
			return echo.NewTransport(), nil
		default:
			return openrouter.NewClient(cfg.OpenRouter)
		}
	}); err != nil {
		log.Fatalf("Failed to provide transport: %v", err)
	}

	// Stores
	if err := container.Provide(func(cfg *config.QuotaConfig) (domain.CounterStore, error) {
		if cfg.Backend != config.QuotaBackendRedis {
			return memory.NewCounterStore(), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		defer cancel()

		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisstore.NewCounterStore(client, cfg.Redis.Prefix), nil
	}); err != nil {
		log.Fatalf("Failed to provide counter store: %v", err)
	}
	if err := container.Provide(func(cfg *config.TelemetryConfig) domain.EventLog {
		return memory.NewEventLog(cfg.MaxEvents)
	}); err != nil {
		log.Fatalf("Failed to provide event log: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(transport domain.Transport, cfg *config.CatalogConfig) *domain.CatalogService {
		return domain.NewCatalogService(transport, cfg.TTLMinutes)
	}); err != nil {
		log.Fatalf("Failed to provide catalog: %v", err)
	}
	if err := container.Provide(func(store domain.CounterStore, cfg *config.QuotaConfig) *domain.QuotaTracker {
		return domain.NewQuotaTracker(store, cfg.Limits())
	}); err != nil {
		log.Fatalf("Failed to provide quota tracker: %v", err)
	}
	if err := container.Provide(func(events domain.EventLog, publisher domain.EventPublisher) *domain.Telemetry {
		return domain.NewTelemetry(events, publisher)
	}); err != nil {
		log.Fatalf("Failed to provide telemetry: %v", err)
	}
	if err := container.Provide(func(
		catalog *domain.CatalogService,
		telemetry *domain.Telemetry,
		cfg *config.RoutingConfig,
	) *domain.PolicyEngine {
		return domain.NewPolicyEngine(catalog, telemetry, cfg.Policy())
	}); err != nil {
		log.Fatalf("Failed to provide policy engine: %v", err)
	}
	if err := container.Provide(func(
		transport domain.Transport,
		policy *domain.PolicyEngine,
		quota *domain.QuotaTracker,
		telemetry *domain.Telemetry,
		catalog *domain.CatalogService,
		cfg *config.ExecutorConfig,
	) *domain.Executor {
		return domain.NewExecutor(transport, policy, quota, telemetry, catalog, cfg.Execution())
	}); err != nil {
		log.Fatalf("Failed to provide executor: %v", err)
	}
	if err := container.Provide(domain.NewRouterService); err != nil {
		log.Fatalf("Failed to provide router service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	// Logger must exist before any service logs.
	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", dig.RootCause(err))
	}

	return container
}
