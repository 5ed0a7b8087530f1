package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Stripe     StripeConfig
	Shipping   ShippingConfig
	Payments   PaymentsConfig
	OrderWatch OrderWatchConfig
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
	Env          string `envconfig:"LUXMINING_APP_ENV" required:"true"`
	Port         string `envconfig:"LUXMINING_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUXMINING_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUXMINING_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LUXMINING_DB_DSN"`
	Driver string `envconfig:"LUXMINING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUXMINING_DB_HOST"`
	LegacyPort     int    `envconfig:"LUXMINING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUXMINING_DB_USER"`
	LegacyPassword string `envconfig:"LUXMINING_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUXMINING_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUXMINING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUXMINING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUXMINING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUXMINING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUXMINING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUXMINING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUXMINING_REDIS_ADDR"`
	Password     string        `envconfig:"LUXMINING_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUXMINING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUXMINING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUXMINING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUXMINING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUXMINING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUXMINING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LUXMINING_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LUXMINING_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LUXMINING_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LUXMINING_STRIPE_API_KEY"`
	Secret string `envconfig:"LUXMINING_STRIPE_SECRET"`
	Env    string `envconfig:"LUXMINING_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ShippingConfig struct {
	QuoteTimeout time.Duration `envconfig:"LUXMINING_SHIPPING_QUOTE_TIMEOUT" default:"10s"`
}

type PaymentsConfig struct {
	ConfirmTimeout time.Duration `envconfig:"LUXMINING_PAYMENTS_CONFIRM_TIMEOUT" default:"30s"`
	Currency       string        `envconfig:"LUXMINING_PAYMENTS_CURRENCY" default:"USD"`
}

type OrderWatchConfig struct {
	MaxAttempts  int           `envconfig:"LUXMINING_ORDER_WATCH_MAX_ATTEMPTS" default:"5"`
	PollInterval time.Duration `envconfig:"LUXMINING_ORDER_WATCH_POLL_INTERVAL" default:"2s"`
	ClearTTL     time.Duration `envconfig:"LUXMINING_ORDER_WATCH_CLEAR_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUXMINING_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUXMINING_AUTO_MIGRATE" default:"false"`
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
