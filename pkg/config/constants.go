package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "SETTLEMENT_APP_ENV"
	EnvPort               = "SETTLEMENT_APP_PORT"
	EnvDBDSN              = "SETTLEMENT_DB_DSN"
	EnvDBHost             = "SETTLEMENT_DB_HOST"
	EnvDBUser             = "SETTLEMENT_DB_USER"
	EnvDBName             = "SETTLEMENT_DB_NAME"
	EnvUseSQLite          = "SETTLEMENT_USE_SQLITE"
	EnvRedisURL           = "SETTLEMENT_REDIS_URL"
	EnvJWTSecret          = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer          = "SETTLEMENT_JWT_ISSUER"
	EnvFallbackCommission = "SETTLEMENT_FALLBACK_COMMISSION_PERCENT"
	EnvFallbackDelivery   = "SETTLEMENT_FALLBACK_DELIVERY_PERCENT"
	EnvSettlementEpsilon  = "SETTLEMENT_EPSILON_CENTS"
	EnvOutboxMaxAttempts  = "SETTLEMENT_OUTBOX_MAX_ATTEMPTS"
	EnvPubSubLedgerTopic  = "SETTLEMENT_PUBSUB_LEDGER_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
