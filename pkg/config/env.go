package config

const EnvPrefix = "CARTLINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	NotificationTransportLog    = "log"
	NotificationTransportPubSub = "pubsub"
)

const (
	EnvAppEnv             = "CARTLINE_APP_ENV"
	EnvPort               = "CARTLINE_APP_PORT"
	EnvDBDSN              = "CARTLINE_DB_DSN"
	EnvDBHost             = "CARTLINE_DB_HOST"
	EnvDBUser             = "CARTLINE_DB_USER"
	EnvDBName             = "CARTLINE_DB_NAME"
	EnvUseSQLite          = "CARTLINE_USE_SQLITE"
	EnvRedisURL           = "CARTLINE_REDIS_URL"
	EnvJWTSecret          = "CARTLINE_JWT_SECRET"
	EnvJWTIssuer          = "CARTLINE_JWT_ISSUER"
	EnvDeliveryCharge     = "CARTLINE_CHECKOUT_DELIVERY_CHARGE_CENTS"
	EnvNotifyTransport    = "CARTLINE_NOTIFICATIONS_TRANSPORT"
	EnvNotificationsTopic = "CARTLINE_NOTIFICATIONS_TOPIC"
	EnvGCPProjectID       = "CARTLINE_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
