package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret     = "change-me-access"
	defaultRefreshSecret = "change-me-refresh"
	defaultSecretKey     = "change-me-reset"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte
	SecretKey     []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	ResetMaxAge  time.Duration
	ResetURLBase string

	Mail Mail

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	BootstrapAdminEmail string
	PurgeSchedule       string
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	dur := func(key string, def time.Duration) time.Duration {
		d, err := EnvDurationDefault(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		AppEnv:   EnvDefault("APP_ENV", "dev"),
		HTTPAddr: EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel: EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: EnvDefault("DATABASE_URL", "ecommerce.db"),

		JWTSecret:     []byte(EnvDefault("JWT_SECRET", defaultJWTSecret)),
		RefreshSecret: []byte(EnvDefault("JWT_REFRESH_SECRET", defaultRefreshSecret)),
		SecretKey:     []byte(EnvDefault("SECRET_KEY", defaultSecretKey)),
		AccessTTL:     dur("JWT_ACCESS_TTL", time.Hour),
		RefreshTTL:    dur("JWT_REFRESH_TTL", 30*24*time.Hour),

		ResetMaxAge:  dur("RESET_TOKEN_MAX_AGE", time.Hour),
		ResetURLBase: strings.TrimRight(EnvDefault("RESET_URL_BASE", "http://localhost:8080/api/reset-password"), "/"),

		Mail: Mail{
			Host:     os.Getenv("MAIL_HOST"),
			Port:     EnvIntDefault("MAIL_PORT", 587),
			Username: os.Getenv("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     EnvDefault("MAIL_FROM", "no-reply@localhost"),
			UseTLS:   EnvBoolDefault("MAIL_USE_TLS", true),
			Timeout:  dur("MAIL_TIMEOUT", 10*time.Second),
		},

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		PurgeSchedule:       EnvDefault("REVOCATION_PURGE_SCHEDULE", "@hourly"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProd() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production", "release":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}
	if c.ResetMaxAge <= 0 {
		return fmt.Errorf("RESET_TOKEN_MAX_AGE must be positive")
	}
	if c.Mail.Timeout <= 0 {
		return fmt.Errorf("MAIL_TIMEOUT must be positive")
	}
	if c.Mail.Host != "" && (c.Mail.Port <= 0 || c.Mail.Port > 65535) {
		return fmt.Errorf("MAIL_PORT out of range: %d", c.Mail.Port)
	}
	if string(c.JWTSecret) == string(c.RefreshSecret) {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if !c.IsProd() {
		return nil
	}

	secrets := map[string]struct {
		value []byte
		def   string
	}{
		"JWT_SECRET":         {c.JWTSecret, defaultJWTSecret},
		"JWT_REFRESH_SECRET": {c.RefreshSecret, defaultRefreshSecret},
		"SECRET_KEY":         {c.SecretKey, defaultSecretKey},
	}
	for name, s := range secrets {
		if len(s.value) == 0 || string(s.value) == s.def {
			return fmt.Errorf("%s must be set in %s", name, c.AppEnv)
		}
	}
	if c.Mail.Host == "" {
		return fmt.Errorf("MAIL_HOST must be set in %s", c.AppEnv)
	}
	return nil
}
