package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port  string `mapstructure:"PORT"`
	Env   string `mapstructure:"ENV"`
	DBDSN string `mapstructure:"DB_DSN"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	AppName   string `mapstructure:"APP_NAME"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	GrantTTL         time.Duration `mapstructure:"GRANT_TTL"`
	ScanOpaqueErrors bool          `mapstructure:"SCAN_OPAQUE_ERRORS"`
	ScanRateRPS      float64       `mapstructure:"SCAN_RATE_RPS"`
	ScanRateBurst    int           `mapstructure:"SCAN_RATE_BURST"`

	PrincipalCacheTTL time.Duration `mapstructure:"PRINCIPAL_CACHE_TTL"`
	// AuthDebugHeaders acepta X-Debug-User-ID / X-Debug-Role sin credencial.
	// Solo se permite con ENV=development.
	AuthDebugHeaders bool `mapstructure:"AUTH_DEBUG_HEADERS"`

	EMRBaseURL string        `mapstructure:"EMR_BASE_URL"`
	EMRAPIKey  string        `mapstructure:"EMR_API_KEY"`
	EMRTimeout time.Duration `mapstructure:"EMR_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DB_DSN",
	"LOG_LEVEL", "LOG_FORMAT", "APP_NAME",
	"JWT_SECRET", "JWT_TTL",
	"GRANT_TTL", "SCAN_OPAQUE_ERRORS", "SCAN_RATE_RPS", "SCAN_RATE_BURST",
	"PRINCIPAL_CACHE_TTL", "AUTH_DEBUG_HEADERS",
	"EMR_BASE_URL", "EMR_API_KEY", "EMR_TIMEOUT",
}

// Load lee env vars (y un .env opcional). Sin ENV explícito se asume
// production, que exige JWT_SECRET.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_NAME", "clinical-access")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("GRANT_TTL", "24h")
	v.SetDefault("SCAN_OPAQUE_ERRORS", true)
	v.SetDefault("SCAN_RATE_RPS", 5)
	v.SetDefault("SCAN_RATE_BURST", 10)
	v.SetDefault("PRINCIPAL_CACHE_TTL", "1m")
	v.SetDefault("AUTH_DEBUG_HEADERS", false)
	v.SetDefault("EMR_BASE_URL", "https://hackathon-api.aheadafrica.org")
	v.SetDefault("EMR_TIMEOUT", "10s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env es opcional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.IsDev() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.AuthDebugHeaders && !c.IsDev() {
		return fmt.Errorf("AUTH_DEBUG_HEADERS is only allowed in development")
	}
	if c.GrantTTL <= 0 {
		return fmt.Errorf("GRANT_TTL must be positive")
	}
	if c.EMRTimeout <= 0 {
		return fmt.Errorf("EMR_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// EMRConfigured indica si hay credenciales para el EMR externo.
func (c *Config) EMRConfigured() bool {
	return strings.TrimSpace(c.EMRBaseURL) != "" && strings.TrimSpace(c.EMRAPIKey) != ""
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
