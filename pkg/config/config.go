package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Notifications NotificationsConfig
	GCP           GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(cfg.GCP); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARTLINE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CARTLINE_LOG_FORMAT"`
	LogWarnStack bool   `envconfig:"CARTLINE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"CARTLINE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CARTLINE_DB_DSN"`

	LegacyHost     string `envconfig:"CARTLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"CARTLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARTLINE_DB_USER"`
	LegacyPassword string `envconfig:"CARTLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARTLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARTLINE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CARTLINE_SQLITE_PATH" default:"cartline.db"`

	MaxOpenConns    int           `envconfig:"CARTLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CARTLINE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL            string        `envconfig:"CARTLINE_REDIS_URL" required:"true"`
	Address        string        `envconfig:"CARTLINE_REDIS_ADDR"`
	Password       string        `envconfig:"CARTLINE_REDIS_PASSWORD"`
	DB             int           `envconfig:"CARTLINE_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"CARTLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"CARTLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"CARTLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"CARTLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"CARTLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"CARTLINE_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARTLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARTLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARTLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARTLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARTLINE_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig holds the pricing and fan-out knobs shared by preview and confirm.
type CheckoutConfig struct {
	DeliveryChargeCents int64  `envconfig:"CARTLINE_CHECKOUT_DELIVERY_CHARGE_CENTS" default:"1050"`
	Currency            string `envconfig:"CARTLINE_CHECKOUT_CURRENCY" default:"NGN"`
	CurrencySymbol      string `envconfig:"CARTLINE_CHECKOUT_CURRENCY_SYMBOL" default:"₦"`
	Locale              string `envconfig:"CARTLINE_CHECKOUT_LOCALE" default:"en-NG"`
	DefaultCountry      string `envconfig:"CARTLINE_CHECKOUT_DEFAULT_COUNTRY" default:"Nigeria"`
	NotifyConcurrency   int    `envconfig:"CARTLINE_CHECKOUT_NOTIFY_CONCURRENCY" default:"4"`

	// ClaimTimeout is how long a cart claim may go unfinished before another
	// request resumes the checkout that left it.
	ClaimTimeout time.Duration `envconfig:"CARTLINE_CHECKOUT_CLAIM_TIMEOUT" default:"1m"`
}

type NotificationsConfig struct {
	Transport string `envconfig:"CARTLINE_NOTIFICATIONS_TRANSPORT" default:"log"`
	Topic     string `envconfig:"CARTLINE_NOTIFICATIONS_TOPIC" default:"cartline-notifications"`
}

// UsesPubSub reports whether notifications are published to Pub/Sub.
func (n NotificationsConfig) UsesPubSub() bool {
	return strings.EqualFold(strings.TrimSpace(n.Transport), NotificationTransportPubSub)
}

func (n NotificationsConfig) validate(gcp GCPConfig) error {
	switch strings.ToLower(strings.TrimSpace(n.Transport)) {
	case NotificationTransportLog:
		return nil
	case NotificationTransportPubSub:
		if strings.TrimSpace(gcp.ProjectID) == "" {
			return fmt.Errorf("%s is required when notifications use pubsub", EnvGCPProjectID)
		}
		if strings.TrimSpace(n.Topic) == "" {
			return fmt.Errorf("%s is required when notifications use pubsub", EnvNotificationsTopic)
		}
		return nil
	default:
		return fmt.Errorf("unsupported notification transport %q", n.Transport)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARTLINE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARTLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARTLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
