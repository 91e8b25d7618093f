package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// DefaultSessionSecret signs cookies when CLMSETUP_SESSION_SECRET is unset.
// Fine for a demo, logged as a warning at startup.
const DefaultSessionSecret = "clm-setup-dev-secret"

// Config holds the server configuration
type Config struct {
	Host          string        `env:"CLMSETUP_HOST" envDefault:"0.0.0.0"`
	Port          int           `env:"PORT" envDefault:"5000"`
	SessionSecret string        `env:"CLMSETUP_SESSION_SECRET"`
	SessionTTL    time.Duration `env:"CLMSETUP_SESSION_TTL" envDefault:"720h"`
	SecureCookie  bool          `env:"CLMSETUP_SECURE_COOKIE" envDefault:"false"`
	StaticDir     string        `env:"CLMSETUP_STATIC_DIR"`
	LogLevel      string        `env:"CLMSETUP_LOG_LEVEL"`

	// Auth endpoint rate limit, per client IP
	AuthRPS   float64 `env:"CLMSETUP_AUTH_RPS" envDefault:"5"`
	AuthBurst int     `env:"CLMSETUP_AUTH_BURST" envDefault:"10"`

	// mDNS advertisement
	Advertise bool   `env:"CLMSETUP_ADVERTISE" envDefault:"true"`
	Instance  string `env:"CLMSETUP_INSTANCE"`

	ShutdownTimeout time.Duration `env:"CLMSETUP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads an optional dotenv file and then the environment.
// A missing envFile is not an error.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return ParseConfig(nil)
}

// ParseConfig parses configuration from environ, or the process environment
// when environ is nil.
func ParseConfig(environ map[string]string) (*Config, error) {
	var cfg Config
	var err error
	if environ != nil {
		err = env.Parse(&cfg, env.Options{Environment: environ})
	} else {
		err = env.Parse(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	if c.AuthRPS <= 0 || c.AuthBurst <= 0 {
		return fmt.Errorf("auth rate limit must be positive (rps=%v burst=%d)", c.AuthRPS, c.AuthBurst)
	}
	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil {
			return fmt.Errorf("static directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("static directory %s is not a directory", c.StaticDir)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) secret() string {
	if c.SessionSecret == "" {
		return DefaultSessionSecret
	}
	return c.SessionSecret
}
