package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Env       string `env:"APP_ENV" envDefault:"production"`
	HTTP      HTTPConfig
	Auth      AuthConfig
	Storage   StorageConfig
	AMQP      AMQPConfig
	Telemetry TelemetryConfig
}

type HTTPConfig struct {
	Port            int           `env:"PORT" envDefault:"8000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

func (h HTTPConfig) Addr() string {
	return ":" + strconv.Itoa(h.Port)
}

type AuthConfig struct {
	JWTSecret           string        `env:"JWT_SECRET"`
	BcryptCost          int           `env:"SALT" envDefault:"10"`
	SessionTTL          time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`
	ResetTTL            time.Duration `env:"AUTH_RESET_TTL" envDefault:"1h"`
	ResetLinkBaseURL    string        `env:"AUTH_RESET_LINK_BASE_URL" envDefault:"http://localhost:8000/reset-password"`
	ConcealUnknownEmail bool          `env:"AUTH_RESET_CONCEAL_UNKNOWN_EMAIL" envDefault:"false"`
	BootstrapName       string        `env:"AUTH_BOOTSTRAP_NAME" envDefault:"admin"`
	BootstrapEmail      string        `env:"AUTH_BOOTSTRAP_EMAIL"`
	BootstrapPassword   string        `env:"AUTH_BOOTSTRAP_PASSWORD"`
}

// StorageConfig picks the account store: MongoURI wins over DatabaseURL, and
// the JSON state file is used when neither is set.
type StorageConfig struct {
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"account_service"`
	DatabaseURL   string `env:"DATABASE_URL"`
	StateFile     string `env:"ACCOUNT_STATE_FILE" envDefault:"./data/accounts.json"`
}

type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"accounts"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"account-service"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	normalize(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Development() bool {
	return c.Env == EnvDevelopment
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Auth.BootstrapName = strings.TrimSpace(cfg.Auth.BootstrapName)
	cfg.Auth.BootstrapEmail = strings.TrimSpace(cfg.Auth.BootstrapEmail)
	cfg.Storage.MongoURI = strings.TrimSpace(cfg.Storage.MongoURI)
	cfg.Storage.DatabaseURL = strings.TrimSpace(cfg.Storage.DatabaseURL)
	cfg.AMQP.URL = strings.TrimSpace(cfg.AMQP.URL)
	cfg.Telemetry.OTLPEndpoint = strings.TrimSpace(cfg.Telemetry.OTLPEndpoint)
}

func (c Config) validate() error {
	if c.Env != EnvProduction && c.Env != EnvDevelopment {
		return fmt.Errorf("APP_ENV must be %q or %q", EnvProduction, EnvDevelopment)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be > 0")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Auth.BcryptCost <= 0 {
		return fmt.Errorf("SALT must be a positive integer")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be > 0")
	}
	if c.Auth.ResetTTL <= 0 {
		return fmt.Errorf("AUTH_RESET_TTL must be > 0")
	}
	u, err := url.Parse(c.Auth.ResetLinkBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTH_RESET_LINK_BASE_URL must be an absolute URL")
	}
	if c.Auth.BootstrapEmail != "" && c.Auth.BootstrapPassword == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty when AUTH_BOOTSTRAP_EMAIL is set")
	}
	if c.Storage.MongoURI != "" && c.Storage.MongoDatabase == "" {
		return fmt.Errorf("MONGO_DATABASE must not be empty")
	}
	if c.Storage.MongoURI == "" && c.Storage.DatabaseURL == "" && c.Storage.StateFile == "" {
		return fmt.Errorf("ACCOUNT_STATE_FILE must not be empty without MONGO_URI or DATABASE_URL")
	}
	if c.AMQP.URL != "" && strings.TrimSpace(c.AMQP.Exchange) == "" {
		return fmt.Errorf("AMQP_EXCHANGE must not be empty when AMQP_URL is set")
	}
	return nil
}
