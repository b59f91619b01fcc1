package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-backend/pkg/bootstrap"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/registry"
	"github.com/angelmondragon/settlement-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	app, err := bootstrap.Start(context.Background(), serviceKind)
	if err != nil {
		bootstrap.Fatal(serviceKind, err)
	}
	ctx, stop := app.SignalContext()
	defer stop()
	app.Exit(ctx, run(ctx, app))
}

func run(ctx context.Context, app *bootstrap.App) error {
	cfg := app.Config

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, app.Logger)
	if err != nil {
		return fmt.Errorf("open pubsub: %w", err)
	}
	app.OnClose("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	service, err := NewService(ServiceParams{
		Outbox:     cfg.Outbox,
		Logger:     app.Logger,
		Metrics:    metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		DB:         app.DB,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(app.DB.DB()),
		Registry:   eventRegistry,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	app.Logger.Info(ctx, "outbox publisher started")
	return service.Run(ctx)
}
