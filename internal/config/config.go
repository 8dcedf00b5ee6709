// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type App struct {
	Env     string `env:"NODE_ENV" envDefault:"development"`
	Name    string `env:"APP_NAME" envDefault:"myapp"`
	Version string `env:"APP_VERSION" envDefault:"dev"`
	Commit  string `env:"APP_COMMIT" envDefault:"unknown"`
}

type HTTP struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	GRPCAddr        string        `env:"GRPC_ADDR"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimitRPS    float64       `env:"HTTP_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst  int           `env:"HTTP_RATE_LIMIT_BURST" envDefault:"100"`
	AllowedOrigins  []string      `env:"HTTP_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr is the listen address for the HTTP server.
func (h HTTP) Addr() string { return fmt.Sprintf(":%d", h.Port) }

type DB struct {
	ConnectionString string        `env:"DB_CONNECTION_STRING"`
	MaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"15m"`
	ConnMaxIdleTime  time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnectTimeout   time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
}

type Supabase struct {
	URL       string        `env:"SUPABASE_URL"`
	SecretKey string        `env:"SUPABASE_SECRET_KEY"`
	AnonKey   string        `env:"SUPABASE_ANON_KEY"`
	JWTSecret string        `env:"SUPABASE_JWT_SECRET"`
	Timeout   time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"10s"`
}

// APIKey is the key sent as the apikey header. Falls back to the secret key.
func (s Supabase) APIKey() string {
	if s.AnonKey != "" {
		return s.AnonKey
	}
	return s.SecretKey
}

type Auth struct {
	TokenMode        string `env:"AUTH_TOKEN_MODE" envDefault:"decode"`
	ActiveGrantsOnly bool   `env:"AUTH_ACTIVE_GRANTS_ONLY" envDefault:"false"`
	RejectRevoked    bool   `env:"AUTH_REJECT_REVOKED" envDefault:"false"`
}

type Cookie struct {
	AccessName      string `env:"COOKIE_ACCESS_NAME" envDefault:"sb-access-token"`
	RefreshName     string `env:"COOKIE_REFRESH_NAME" envDefault:"sb-refresh-token"`
	Domain          string `env:"COOKIE_DOMAIN"`
	Secure          bool   `env:"COOKIE_SECURE" envDefault:"true"`
	RefreshSameSite string `env:"COOKIE_REFRESH_SAMESITE" envDefault:"lax"`
}

// SameSite maps the configured refresh cookie policy.
func (c Cookie) SameSite() http.SameSite {
	switch strings.ToLower(c.RefreshSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type Frontend struct {
	BaseURL              string `env:"FRONTEND_BASE_URL"`
	EmailConfirmationURL string `env:"FRONTEND_EMAIL_CONFIRMATION_URL"`
	PasswordResetURL     string `env:"FRONTEND_PASSWORD_RESET_URL"`
}

type Mail struct {
	Host     string `env:"MAIL_HOST"`
	TLSPort  int    `env:"MAIL_TLS_PORT" envDefault:"587"`
	SSLPort  int    `env:"MAIL_SSL_PORT" envDefault:"465"`
	Username string `env:"MAIL_USERNAME"`
	Password string `env:"MAIL_PASSWORD"`
	From     string `env:"MAIL_FROM"`
	Secure   bool   `env:"MAIL_SECURE" envDefault:"false"`
}

type Redis struct {
	Driver   string `env:"CACHE_DRIVER" envDefault:"memory"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"CACHE_PREFIX" envDefault:"myapp"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Config is the full process configuration.
type Config struct {
	App      App
	HTTP     HTTP
	DB       DB
	Supabase Supabase
	Auth     Auth
	Cookie   Cookie
	Frontend Frontend
	Mail     Mail
	Redis    Redis
	Log      Log
}

// IsProduction reports whether NODE_ENV is production.
func (c Config) IsProduction() bool { return strings.EqualFold(c.App.Env, "production") }

// MailPort picks the TLS port in production and the SSL port otherwise.
func (c Config) MailPort() int {
	if c.IsProduction() {
		return c.Mail.TLSPort
	}
	return c.Mail.SSLPort
}

// Load reads optional .env files, then parses the environment.
// Variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the current environment and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.DB.ConnectionString == "" {
		errs = append(errs, errors.New("DB_CONNECTION_STRING is required"))
	}
	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.Supabase.SecretKey == "" {
		errs = append(errs, errors.New("SUPABASE_SECRET_KEY is required"))
	}
	switch c.Auth.TokenMode {
	case "decode":
	case "verify":
		if c.Supabase.JWTSecret == "" {
			errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required when AUTH_TOKEN_MODE=verify"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_MODE must be decode or verify, got %q", c.Auth.TokenMode))
	}
	switch c.Redis.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER must be memory or redis, got %q", c.Redis.Driver))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.HTTP.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
