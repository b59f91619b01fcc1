// Package bootstrap holds the startup sequence shared by every binary:
// environment, config, logger, database and dev migrations.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/instance"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

// App is a started process. Close releases everything it opened in reverse
// order.
type App struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env and config, builds the service logger, opens the database
// and runs the dev auto-migration. Anything opened before a failure is closed.
func Start(ctx context.Context, kind string) (*App, error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind

	app := &App{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       cfg.App.LogLevel,
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}

	app.DB, err = db.New(ctx, cfg.DB, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.OnClose("database", app.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, app.Logger, app.DB); err != nil {
		app.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return app, nil
}

// Redis connects to redis and registers it for Close.
func (a *App) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, a.Config.Redis, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	a.OnClose("redis", client.Close)
	return client, nil
}

// OnClose registers fn to run during Close.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close runs the registered closers, newest first. It is safe to call twice.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.Logger.Error(a.Logger.WithField(context.Background(), "resource", c.name), "close failed", err)
		}
	}
	a.closers = nil
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the fields every
// line of a running process is tagged with.
func (a *App) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = a.Logger.WithFields(ctx, map[string]any{
		"env":         a.Config.App.Env,
		"serviceKind": a.Kind,
		"instance":    instance.GetID(a.Kind),
	})
	return ctx, stop
}

// Exit logs err and terminates. Cancellation is a clean stop.
func (a *App) Exit(ctx context.Context, err error) {
	a.Close()
	if err == nil || errors.Is(err, context.Canceled) {
		a.Logger.Info(ctx, a.Kind+" stopped")
		os.Exit(0)
	}
	a.Logger.Error(ctx, a.Kind+" stopped unexpectedly", err)
	os.Exit(1)
}

// Fatal reports a startup failure that happened before an App existed.
func Fatal(kind string, err error) {
	logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), kind+" failed to start", err)
	os.Exit(1)
}
