package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/settlement-backend/api/controllers"
	walletcontrollers "github.com/angelmondragon/settlement-backend/api/controllers/wallet"
	"github.com/angelmondragon/settlement-backend/api/middleware"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/internal/withdrawals"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	ordersSvc orders.Service,
	settlementSvc settlement.Service,
	platformSvc platformwallet.Service,
	walletSvc wallet.Ledger,
	ledgerSvc ledger.Service,
	withdrawalSvc withdrawals.Service,
	payoutSvc payouts.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// a nil *redis.Client must not reach the middleware as a non-nil interface
	var store redis.IdempotencyStore
	ready := map[string]controllers.Pinger{"database": dbP}
	if redisClient != nil {
		store = redisClient
		ready["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", controllers.AdminWithdrawals(withdrawalSvc, logg))
			r.Patch("/{id}/approve", controllers.AdminApproveWithdrawal(withdrawalSvc, logg))
			r.Patch("/{id}/reject", controllers.AdminRejectWithdrawal(withdrawalSvc, logg))
			r.Patch("/{id}/complete", controllers.AdminCompleteWithdrawal(withdrawalSvc, logg))
		})
		r.Get("/v1/platform-wallet", controllers.AdminPlatformWallet(platformSvc, logg))
		r.Route("/v1/orders/{orderId}", func(r chi.Router) {
			r.Get("/breakdown", controllers.AdminOrderBreakdown(ordersSvc, logg))
			r.Get("/commission-preview", controllers.AdminCommissionPreview(ordersSvc, logg))
			r.Post("/paid", controllers.AdminMarkOrderPaid(settlementSvc, logg))
			r.Post("/deliver", controllers.AdminMarkOrderDelivered(settlementSvc, logg))
			r.Post("/distribute", controllers.AdminDistributeOrder(settlementSvc, logg))
			r.Post("/reverse", controllers.AdminReverseOrder(settlementSvc, logg))
		})
	})

	r.Route("/api/seller/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleSeller))
		r.Use(middleware.Idempotency(store, logg))
		mountWallet(r, enums.PartySeller, walletSvc, ledgerSvc, withdrawalSvc, logg)
	})

	r.Route("/api/delivery/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleDelivery))
		r.Use(middleware.Idempotency(store, logg))
		mountWallet(r, enums.PartyDeliveryBoy, walletSvc, ledgerSvc, withdrawalSvc, logg)
		r.Post("/payout/create", walletcontrollers.PayoutCreate(payoutSvc, logg))
		r.Post("/payout/verify", walletcontrollers.PayoutVerify(payoutSvc, logg))
	})

	return r
}

func mountWallet(r chi.Router, partyType enums.PartyType, walletSvc wallet.Ledger, ledgerSvc ledger.Service, withdrawalSvc withdrawals.Service, logg *logger.Logger) {
	r.Get("/balance", walletcontrollers.Balance(walletSvc, partyType, logg))
	r.Get("/transactions", walletcontrollers.Transactions(walletSvc, partyType, logg))
	r.Get("/commissions", walletcontrollers.Commissions(ledgerSvc, partyType, logg))
	r.Get("/withdrawals", walletcontrollers.Withdrawals(withdrawalSvc, partyType, logg))
	r.Post("/withdraw", walletcontrollers.Withdraw(withdrawalSvc, partyType, logg))
}
