// Package app wires the application's services together with a samber/do
// injector and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/collabhub/internal/access"
	"github.com/nfrund/collabhub/internal/activity"
	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/pubsub"
	"github.com/nfrund/collabhub/internal/ratelimit"
	"github.com/nfrund/collabhub/internal/relay"
	"github.com/nfrund/collabhub/internal/security"
	"github.com/nfrund/collabhub/internal/server"
	"github.com/nfrund/collabhub/internal/store"
	"github.com/nfrund/collabhub/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"
)

// Options adjust how the application is assembled.
type Options struct {
	// Seed loads the demo data set when the memory backend is active.
	Seed bool
	// Tracing configures bus tracing. Zero means tracing disabled.
	Tracing pubsub.TracingConfig
}

// App is the assembled application.
type App struct {
	injector *do.RootScope
}

// New registers every service with a fresh injector. Services are built
// lazily on first use; Server forces the whole graph.
func New(cfg config.Provider, opts Options) *App {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, opts)
	do.Provide(i, provideStores)
	do.Provide(i, provideTracing)
	do.Provide(i, provideBus)
	do.Provide(i, provideChecker)
	do.Provide(i, provideCoordinator)
	do.Provide(i, provideLimiter)
	do.Provide(i, provideRelay)
	do.Provide(i, provideTokens)
	do.Provide(i, provideSockets)
	do.Provide(i, provideRecorder)
	do.Provide(i, provideServer)

	return &App{injector: i}
}

// Server builds and returns the HTTP server with its routes registered.
func (a *App) Server() (*server.Server, error) {
	return do.Invoke[*server.Server](a.injector)
}

// Tokens returns the token manager.
func (a *App) Tokens() (*security.TokenManager, error) {
	return do.Invoke[*security.TokenManager](a.injector)
}

// Run starts the activity recorder and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv, err := a.Server()
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	recorder, err := do.Invoke[*activity.Recorder](a.injector)
	if err != nil {
		return fmt.Errorf("build activity recorder: %w", err)
	}
	if err := recorder.Start(ctx); err != nil {
		return err
	}
	return srv.Start(ctx)
}

// Shutdown stops every service that was built, dependents first.
func (a *App) Shutdown(ctx context.Context) error {
	report := a.injector.ShutdownWithContext(ctx)
	if report != nil && !report.Succeed {
		return report
	}
	slog.Info("Application stopped")
	return nil
}

func provideStores(i do.Injector) (*store.Stores, error) {
	cfg := do.MustInvoke[config.Provider](i)
	opts := do.MustInvoke[Options](i)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stores, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if mem, ok := stores.Memory(); ok && opts.Seed {
		mem.Seed()
		slog.Info("Loaded demo data into memory store")
	}
	return stores, nil
}

// tracing holds the bus tracer and flushes its exporter on shutdown.
type tracing struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

func (t *tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

func provideTracing(i do.Injector) (*tracing, error) {
	opts := do.MustInvoke[Options](i)
	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), opts.Tracing)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	if opts.Tracing.Enabled {
		slog.Info("Bus tracing enabled", "zipkin", opts.Tracing.ZipkinURL)
	}
	return &tracing{tracer: tracer, shutdown: shutdown}, nil
}

// bus closes the watermill bridge when the injector shuts down.
type bus struct {
	*pubsub.WatermillBridge
}

func (b *bus) Shutdown() error {
	return b.Close()
}

func provideBus(i do.Injector) (*bus, error) {
	t := do.MustInvoke[*tracing](i)
	return &bus{pubsub.NewWatermillBridge(pubsub.WithTracer(t.tracer))}, nil
}

func provideChecker(i do.Injector) (*access.Checker, error) {
	stores := do.MustInvoke[*store.Stores](i)
	return access.NewChecker(stores, stores), nil
}

func provideCoordinator(i do.Injector) (*presence.Coordinator, error) {
	cfg := do.MustInvoke[config.Provider](i)
	b := do.MustInvoke[*bus](i)
	checker := do.MustInvoke[*access.Checker](i)
	return presence.NewCoordinator(
		presence.NewSessionRegistry(),
		presence.NewRoomIndex(),
		checker,
		presence.WithPublisher(b),
		presence.WithOnlineBroadcast(cfg.GetOnlineBroadcast()),
	), nil
}

// redisLimiter owns the Redis client behind the send limiter.
type redisLimiter struct {
	*ratelimit.Redis
	client *redis.Client
}

func (l *redisLimiter) Shutdown() error {
	return l.client.Close()
}

func provideLimiter(i do.Injector) (ratelimit.Limiter, error) {
	cfg := do.MustInvoke[config.Provider](i)
	perMinute := cfg.GetMessageRatePerMinute()
	if perMinute <= 0 || cfg.GetRedisAddr() == "" {
		slog.Info("Message rate limiting disabled")
		return ratelimit.Unlimited{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ratelimit.NewClient(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB())
	if err != nil {
		return nil, err
	}
	slog.Info("Message rate limiting enabled", "per_minute", perMinute, "redis", cfg.GetRedisAddr())
	return &redisLimiter{Redis: ratelimit.NewRedis(client, perMinute, time.Minute), client: client}, nil
}

func provideRelay(i do.Injector) (*relay.Relay, error) {
	stores := do.MustInvoke[*store.Stores](i)
	return relay.New(relay.Deps{
		Coordinator:   do.MustInvoke[*presence.Coordinator](i),
		Access:        do.MustInvoke[*access.Checker](i),
		Projects:      stores,
		Chats:         stores,
		Notifications: stores,
		Limiter:       do.MustInvoke[ratelimit.Limiter](i),
	}), nil
}

func provideTokens(i do.Injector) (*security.TokenManager, error) {
	cfg := do.MustInvoke[config.Provider](i)
	return security.NewTokenManager(cfg.GetJWTSecret(), cfg.GetJWTTTL()), nil
}

func provideSockets(i do.Injector) (*websocket.Handler, error) {
	cfg := do.MustInvoke[config.Provider](i)
	coord := do.MustInvoke[*presence.Coordinator](i)
	dispatcher := websocket.NewDispatcher(coord, do.MustInvoke[*relay.Relay](i), nil)
	return websocket.NewHandler(coord, dispatcher, websocket.Options{
		SendBuffer:     cfg.GetWSSendBuffer(),
		ReadLimit:      cfg.GetWSReadLimit(),
		AllowedOrigins: cfg.GetWSAllowedOrigins(),
	}), nil
}

func provideRecorder(i do.Injector) (*activity.Recorder, error) {
	b := do.MustInvoke[*bus](i)
	stores := do.MustInvoke[*store.Stores](i)
	return activity.NewRecorder(b, stores), nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	srv, err := server.New(server.Dependencies{
		Config:      do.MustInvoke[config.Provider](i),
		Stores:      do.MustInvoke[*store.Stores](i),
		Coordinator: do.MustInvoke[*presence.Coordinator](i),
		Sockets:     do.MustInvoke[*websocket.Handler](i),
		Tokens:      do.MustInvoke[*security.TokenManager](i),
	})
	if err != nil {
		return nil, err
	}
	srv.RegisterRoutes()
	return srv, nil
}
