package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RESIDENCY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	IdentityProviderFirebase = "firebase"
	IdentityProviderDev      = "dev"

	EnvAppEnv           = "RESIDENCY_APP_ENV"
	EnvPort             = "RESIDENCY_APP_PORT"
	EnvDBDSN            = "RESIDENCY_DB_DSN"
	EnvDBHost           = "RESIDENCY_DB_HOST"
	EnvDBUser           = "RESIDENCY_DB_USER"
	EnvDBName           = "RESIDENCY_DB_NAME"
	EnvRedisURL         = "RESIDENCY_REDIS_URL"
	EnvIdentityProvider = "RESIDENCY_IDENTITY_PROVIDER"
	EnvDevTokenSecret   = "RESIDENCY_DEV_TOKEN_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Identity  IdentityConfig
	Session   SessionConfig
	Stripe    StripeConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Client    ClientConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Identity.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads only the settings the API client needs, so the CLI can run
// without database or Stripe credentials.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return &cfg, nil
}

// LoadIdentity reads only the identity settings, used to mint dev tokens.
func LoadIdentity() (*IdentityConfig, error) {
	var cfg IdentityConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing identity config: %w", err)
	}
	if strings.TrimSpace(cfg.DevTokenSecret) == "" {
		return nil, fmt.Errorf("%s is required", EnvDevTokenSecret)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RESIDENCY_APP_ENV" required:"true"`
	Port         string `envconfig:"RESIDENCY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RESIDENCY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESIDENCY_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RESIDENCY_LOG_FORMAT" default:"json"`
	AutoMigrate  bool   `envconfig:"RESIDENCY_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"RESIDENCY_DB_DSN"`

	LegacyHost     string `envconfig:"RESIDENCY_DB_HOST"`
	LegacyPort     int    `envconfig:"RESIDENCY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESIDENCY_DB_USER"`
	LegacyPassword string `envconfig:"RESIDENCY_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESIDENCY_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESIDENCY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESIDENCY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESIDENCY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESIDENCY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESIDENCY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESIDENCY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RESIDENCY_REDIS_ADDR"`
	Password     string        `envconfig:"RESIDENCY_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESIDENCY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESIDENCY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESIDENCY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESIDENCY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESIDENCY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESIDENCY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdentityConfig selects how bearer tokens are verified.
type IdentityConfig struct {
	Provider        string `envconfig:"RESIDENCY_IDENTITY_PROVIDER" default:"firebase"`
	CredentialsFile string `envconfig:"RESIDENCY_FIREBASE_CREDENTIALS_FILE"`
	DevTokenSecret  string `envconfig:"RESIDENCY_DEV_TOKEN_SECRET"`
	DevTokenIssuer  string `envconfig:"RESIDENCY_DEV_TOKEN_ISSUER" default:"residency-dev"`
	DevTokenTTL     int    `envconfig:"RESIDENCY_DEV_TOKEN_TTL_MINUTES" default:"60"`
}

// NormalizedProvider returns the lower-cased provider name.
func (i IdentityConfig) NormalizedProvider() string {
	p := strings.ToLower(strings.TrimSpace(i.Provider))
	if p == "" {
		return IdentityProviderFirebase
	}
	return p
}

func (i IdentityConfig) validate() error {
	switch i.NormalizedProvider() {
	case IdentityProviderFirebase:
		return nil
	case IdentityProviderDev:
		if strings.TrimSpace(i.DevTokenSecret) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDevTokenSecret, EnvIdentityProvider, IdentityProviderDev)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvIdentityProvider, IdentityProviderFirebase, IdentityProviderDev)
	}
}

type SessionConfig struct {
	RoleCacheTTL      time.Duration `envconfig:"RESIDENCY_ROLE_CACHE_TTL" default:"30m"`
	PaymentSessionTTL time.Duration `envconfig:"RESIDENCY_PAYMENT_SESSION_TTL" default:"1h"`
	IdempotencyTTL    time.Duration `envconfig:"RESIDENCY_IDEMPOTENCY_TTL" default:"24h"`
	WebhookGuardTTL   time.Duration `envconfig:"RESIDENCY_STRIPE_WEBHOOK_GUARD_TTL" default:"720h"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"RESIDENCY_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"RESIDENCY_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"RESIDENCY_STRIPE_ENV" default:"test"`
	Currency      string `envconfig:"RESIDENCY_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"RESIDENCY_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// RateLimitConfig throttles coupon application per caller.
type RateLimitConfig struct {
	CouponWindow time.Duration `envconfig:"RESIDENCY_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponLimit  int           `envconfig:"RESIDENCY_RATE_LIMIT_COUPON_LIMIT" default:"10"`
}

// ClientConfig configures pkg/apiclient.
type ClientConfig struct {
	BaseURL      string        `envconfig:"RESIDENCY_CLIENT_BASE_URL" default:"http://localhost:5000"`
	Token        string        `envconfig:"RESIDENCY_CLIENT_TOKEN"`
	Timeout      time.Duration `envconfig:"RESIDENCY_CLIENT_TIMEOUT" default:"10s"`
	ReadRetries  uint64        `envconfig:"RESIDENCY_CLIENT_READ_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"RESIDENCY_CLIENT_RETRY_BACKOFF" default:"500ms"`
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
