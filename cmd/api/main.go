package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-backend/api/routes"
	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/internal/withdrawals"
	"github.com/angelmondragon/settlement-backend/pkg/bootstrap"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
	"github.com/angelmondragon/settlement-backend/pkg/square"
)

const serviceKind = "api"

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

	redisClient, err := app.Redis(ctx)
	if err != nil {
		return err
	}
	squareClient, err := square.NewClient(ctx, cfg.Square, app.Logger)
	if err != nil {
		return fmt.Errorf("square client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := newHandler(app, redisClient, squareClient, registry)
	if err != nil {
		return err
	}

	addr := ":" + cmp.Or(os.Getenv("PORT"), cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	app.Logger.Info(app.Logger.WithField(ctx, "addr", addr), "api server listening")

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()
	app.Logger.Info(ctx, "draining in-flight requests")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// newHandler wires the settlement services and mounts them on the router.
func newHandler(app *bootstrap.App, redisClient *redis.Client, squareClient *square.Client, registry *prometheus.Registry) (http.Handler, error) {
	cfg, logg := app.Config, app.Logger
	conn := app.DB.DB()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	sellers := catalog.NewSellerRepository(conn)
	delivery := catalog.NewDeliveryRepository(conn)
	resolver, err := commission.NewRateResolver(commission.Lookups{
		Products:   catalog.NewProductRepository(conn),
		Categories: catalog.NewCategoryRepository(conn),
		Sellers:    sellers,
		Delivery:   delivery,
		Settings:   catalog.NewSettingsProvider(conn),
	}, cfg.Settlement, logg)
	if err != nil {
		return nil, fmt.Errorf("rate resolver: %w", err)
	}
	calculator, err := commission.NewCalculator(resolver)
	if err != nil {
		return nil, fmt.Errorf("commission calculator: %w", err)
	}

	ordersRepo := orders.NewRepository(conn)
	ordersService, err := orders.NewService(ordersRepo, calculator)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	walletLedger, err := wallet.NewService(wallet.NewRepository(conn), sellers, delivery, logg)
	if err != nil {
		return nil, fmt.Errorf("wallet ledger: %w", err)
	}
	platformService, err := platformwallet.NewService(platformwallet.NewRepository(conn), logg)
	if err != nil {
		return nil, fmt.Errorf("platform wallet: %w", err)
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	commissions := ledger.NewRepository(conn)
	ledgerService, err := ledger.NewService(ledger.Deps{
		Repo:       commissions,
		Orders:     ordersRepo,
		Calculator: calculator,
		Wallets:    walletLedger,
		Platform:   platformService,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("commission ledger: %w", err)
	}

	settlementService, err := settlement.NewService(settlement.Deps{
		DB:          app.DB,
		Orders:      ordersRepo,
		Commissions: commissions,
		Ledger:      ledgerService,
		Calculator:  calculator,
		Wallets:     walletLedger,
		Delivery:    delivery,
		Platform:    platformService,
		Outbox:      emitter,
		Metrics:     settlementMetrics,
		Logger:      logg,
		Epsilon:     cfg.Settlement.Epsilon(),
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	withdrawalService, err := withdrawals.NewService(withdrawals.Deps{
		DB:       app.DB,
		Repo:     withdrawals.NewRepository(conn),
		Wallets:  walletLedger,
		Platform: platformService,
		Outbox:   emitter,
		Metrics:  settlementMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("withdrawal service: %w", err)
	}

	payoutService, err := payouts.NewService(payouts.Deps{
		DB:         app.DB,
		Repo:       payouts.NewRepository(conn),
		Delivery:   delivery,
		Payments:   squareClient,
		Reconciler: settlementService,
		Locker:     redisClient,
		Metrics:    settlementMetrics,
		Logger:     logg,
		Epsilon:    cfg.Settlement.Epsilon(),
		Currency:   cfg.Square.Currency,
		LocationID: cfg.Square.LocationID,
	})
	if err != nil {
		return nil, fmt.Errorf("payout service: %w", err)
	}

	return routes.NewRouter(
		cfg,
		logg,
		app.DB,
		redisClient,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		ordersService,
		settlementService,
		platformService,
		walletLedger,
		ledgerService,
		withdrawalService,
		payoutService,
	), nil
}
