package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-backend/internal/cron"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/pkg/bootstrap"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit, for use under an external scheduler")
	flag.Parse()

	app, err := bootstrap.Start(context.Background(), serviceKind)
	if err != nil {
		bootstrap.Fatal(serviceKind, err)
	}
	ctx, stop := app.SignalContext()
	defer stop()
	app.Exit(ctx, run(ctx, app, *once))
}

func run(ctx context.Context, app *bootstrap.App, once bool) error {
	cfg := app.Config

	redisClient, err := app.Redis(ctx)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	expiry, err := cron.NewPayoutExpiryJob(cron.PayoutExpiryJobParams{
		Logger:     app.Logger,
		Repository: payouts.NewRepository(app.DB.DB()),
		TTL:        cfg.Cron.PayoutTTL,
	})
	if err != nil {
		return fmt.Errorf("payout expiry job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        app.Logger,
		DB:            app.DB,
		Repository:    outbox.NewRepository(app.DB.DB()),
		RetentionDays: cfg.Cron.OutboxRetentionDays,
		DeadAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   app.Logger,
		Jobs:     []cron.Job{expiry, retention},
		Lock:     lock,
		Metrics:  metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if once {
		return service.RunOnce(ctx)
	}
	app.Logger.Info(ctx, "cron worker started")
	return service.Run(ctx)
}
