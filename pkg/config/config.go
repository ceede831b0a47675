package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Payments   PaymentsConfig
	Razorpay   RazorpayConfig
	Cashfree   CashfreeConfig
	Shipping   ShippingConfig
	Checkout   CheckoutConfig
	Reconciler ReconcilerConfig
	Features   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymentsConfig gates which fulfillment paths are offered at checkout.
// COD is gated independently of the online flag; a provider is selectable
// only when both the online flag and its own flag are set.
type PaymentsConfig struct {
	CODEnabled      bool `envconfig:"STOREFRONT_PAYMENTS_COD_ENABLED" default:"true"`
	OnlineEnabled   bool `envconfig:"STOREFRONT_PAYMENTS_ONLINE_ENABLED" default:"true"`
	RazorpayEnabled bool `envconfig:"STOREFRONT_PAYMENTS_RAZORPAY_ENABLED" default:"true"`
	CashfreeEnabled bool `envconfig:"STOREFRONT_PAYMENTS_CASHFREE_ENABLED" default:"true"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"STOREFRONT_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"STOREFRONT_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"STOREFRONT_RAZORPAY_WEBHOOK_SECRET"`
}

type CashfreeConfig struct {
	AppID     string `envconfig:"STOREFRONT_CASHFREE_APP_ID"`
	SecretKey string `envconfig:"STOREFRONT_CASHFREE_SECRET_KEY"`
	Env       string `envconfig:"STOREFRONT_CASHFREE_ENV" default:"sandbox"`
}

func (c CashfreeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(c.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type ShippingConfig struct {
	CODFee            string `envconfig:"STOREFRONT_SHIPPING_COD_FEE" default:"50"`
	OnlineFee         string `envconfig:"STOREFRONT_SHIPPING_ONLINE_FEE" default:"50"`
	FreeOnlineMinimum string `envconfig:"STOREFRONT_SHIPPING_FREE_ONLINE_MINIMUM" default:"599"`
}

// CODFeeAmount parses the configured COD charge; invalid values fall back to 50.
func (s ShippingConfig) CODFeeAmount() decimal.Decimal {
	return parseAmount(s.CODFee, "50")
}

// OnlineFeeAmount parses the below-threshold online charge; invalid values fall back to 50.
func (s ShippingConfig) OnlineFeeAmount() decimal.Decimal {
	return parseAmount(s.OnlineFee, "50")
}

// FreeOnlineThreshold parses the free-shipping subtotal floor; invalid values fall back to 599.
func (s ShippingConfig) FreeOnlineThreshold() decimal.Decimal {
	return parseAmount(s.FreeOnlineMinimum, "599")
}

func parseAmount(raw, fallback string) decimal.Decimal {
	if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
		return d
	}
	return decimal.RequireFromString(fallback)
}

type CheckoutConfig struct {
	PlacementLockTTL time.Duration `envconfig:"STOREFRONT_CHECKOUT_PLACEMENT_LOCK_TTL" default:"2m"`
	IntentAbandonTTL time.Duration `envconfig:"STOREFRONT_CHECKOUT_INTENT_ABANDON_TTL" default:"30m"`
	PlaceRateLimit   int64         `envconfig:"STOREFRONT_CHECKOUT_PLACE_RATE_LIMIT" default:"10"`
	PlaceRateWindow  time.Duration `envconfig:"STOREFRONT_CHECKOUT_PLACE_RATE_WINDOW" default:"1m"`
}

type ReconcilerConfig struct {
	Interval    time.Duration `envconfig:"STOREFRONT_RECONCILER_INTERVAL" default:"1m"`
	MaxAttempts int           `envconfig:"STOREFRONT_RECONCILER_MAX_ATTEMPTS" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
