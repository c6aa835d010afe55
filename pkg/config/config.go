package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the console reads from the environment.
type Config struct {
	Port               string          `env:"SERVER_PORT" envDefault:"8080"`
	APIBaseURL         string          `env:"API_BASE_URL" envDefault:"http://localhost:5213/api"`
	HubURL             string          `env:"HUB_URL" envDefault:"http://localhost:5213/userhub"`
	PageSize           int             `env:"PAGE_SIZE" envDefault:"4"`
	HTTPTimeout        time.Duration   `env:"HTTP_TIMEOUT" envDefault:"10s"`
	PendingTTL         time.Duration   `env:"PENDING_TTL" envDefault:"30s"`
	ReconnectDelays    []time.Duration `env:"RECONNECT_DELAYS" envDefault:"0s,2s,10s,30s" envSeparator:","`
	UserAgent          string          `env:"USER_AGENT" envDefault:"userconsole/1.0"`
	CORSAllowedOrigins []string        `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCreds     bool            `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	TLSCertPath        string          `env:"TLS_CERT_PATH"`
	TLSKeyPath         string          `env:"TLS_KEY_PATH"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return Parse()
}

// Parse parses the current environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSAllowedOrigins = cleanOrigins(cfg.CORSAllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the console cannot run with.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if strings.TrimSpace(c.HubURL) == "" {
		return fmt.Errorf("HUB_URL is required")
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return fmt.Errorf("TLS_CERT_PATH and TLS_KEY_PATH must be set together")
	}
	for _, d := range c.ReconnectDelays {
		if d < 0 {
			return fmt.Errorf("RECONNECT_DELAYS must not be negative")
		}
	}
	return nil
}

// TLSEnabled reports whether a certificate pair was configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

func cleanOrigins(in []string) []string {
	origins := make([]string, 0, len(in))
	for _, p := range in {
		o := strings.TrimSpace(p)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}
