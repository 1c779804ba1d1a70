package config

import (
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/comeencasa/restaurant-api/pkg/config"
	"github.com/comeencasa/restaurant-api/pkg/database"
	"github.com/comeencasa/restaurant-api/pkg/middleware"
	"github.com/comeencasa/restaurant-api/pkg/tracing"
)

const (
	ServiceName = "restaurant-api"

	defaultAccessSecret  = "change-this-access-secret"
	defaultRefreshSecret = "change-this-refresh-secret"
	defaultAdminPassword = "change-me"
	minSecretLength      = 32
	minAdminPasswordLen  = 12
)

// Config holds all configuration for the restaurant API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"restaurant"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"restaurant_secret"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"restaurant"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled         bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	NotificationsEnabled bool     `env:"NOTIFICATIONS_ENABLED" envDefault:"true"`

	// JWT
	JWTAccessSecret      string `env:"JWT_ACCESS_SECRET" envDefault:"change-this-access-secret"`
	JWTRefreshSecret     string `env:"JWT_REFRESH_SECRET" envDefault:"change-this-refresh-secret"`
	AccessExpireMinutes  int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	RefreshExpireMinutes int    `env:"REFRESH_TOKEN_EXPIRE_MINUTES" envDefault:"1008"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"restaurant-api"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// AdminCredentials guards the /admin routes with HTTP Basic auth.
	// Format: "user:pass,user2:pass2".
	AdminCredentials map[string]string `env:"ADMIN_CREDENTIALS" envDefault:"admin:change-me" envSeparator:"," envKeyValSeparator:":"`

	// Telegram
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`

	// SMTP
	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string   `env:"SMTP_USERNAME"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	SMTPFrom     string   `env:"SMTP_FROM" envDefault:"no-reply@comeencasa.es"`
	NotifyEmails []string `env:"NOTIFY_EMAIL_TO" envSeparator:","`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Per-client throttling of the /auth endpoints. RPS <= 0 disables it.
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
	TrustProxyHeaders  bool    `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// /debug/pprof is mounted only when this lists at least one CIDR.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load restaurant config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and, outside development, rejects placeholder
// secrets and admin passwords.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.AccessExpireMinutes <= 0 || c.RefreshExpireMinutes <= 0 {
		return fmt.Errorf("token expiry minutes must be positive")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must not be empty")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if len(c.AdminCredentials) == 0 {
		return fmt.Errorf("ADMIN_CREDENTIALS must name at least one user")
	}
	if c.AuthRateLimitRPS > 0 && c.AuthRateLimitBurst < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if _, err := middleware.ParsePrefixes(c.PprofAllowedCIDRs); err != nil {
		return fmt.Errorf("PPROF_ALLOWED_CIDRS: %w", err)
	}

	if c.IsDevelopment() {
		return nil
	}

	for name, secret := range map[string]string{
		"JWT_ACCESS_SECRET":  c.JWTAccessSecret,
		"JWT_REFRESH_SECRET": c.JWTRefreshSecret,
	} {
		if secret == defaultAccessSecret || secret == defaultRefreshSecret {
			return fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, c.Environment)
		}
		if len(secret) < minSecretLength {
			return fmt.Errorf("%s must be at least %d characters long, got %d", name, minSecretLength, len(secret))
		}
	}
	for user, pass := range c.AdminCredentials {
		if pass == defaultAdminPassword || len(pass) < minAdminPasswordLen {
			return fmt.Errorf("admin password for %q must be set and at least %d characters in %q mode", user, minAdminPasswordLen, c.Environment)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessExpireMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpireMinutes) * time.Minute
}

// TelegramEnabled reports whether both bot token and chat id are set.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// EmailEnabled reports whether an SMTP host and at least one recipient are set.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && len(c.NotifyEmails) > 0
}

func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Environment = c.Environment
	tc.Enabled = c.OTelEnabled
	tc.OTLPEndpoint = c.OTelEndpoint
	tc.SampleRate = c.OTelSampleRate
	return tc
}

// AuthRateLimit returns the limiter settings for the /auth endpoints, or
// false when throttling is disabled.
func (c *Config) AuthRateLimit() (middleware.RateLimitConfig, bool) {
	if c.AuthRateLimitRPS <= 0 {
		return middleware.RateLimitConfig{}, false
	}
	return middleware.RateLimitConfig{
		RPS:               c.AuthRateLimitRPS,
		Burst:             c.AuthRateLimitBurst,
		TrustProxyHeaders: c.TrustProxyHeaders,
	}, true
}

// PprofAllowlist returns the networks allowed to reach /debug/pprof. Load
// has already validated them.
func (c *Config) PprofAllowlist() []netip.Prefix {
	prefixes, _ := middleware.ParsePrefixes(c.PprofAllowedCIDRs)
	return prefixes
}

func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	cors.Environment = c.Environment
	return cors
}
