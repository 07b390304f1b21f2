package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	AIAPIKey      string   `mapstructure:"AI_API_KEY"`
	AIBaseURL     string   `mapstructure:"AI_BASE_URL"`
	AIModel       string   `mapstructure:"AI_MODEL"`
	AITimeout     int      `mapstructure:"AI_TIMEOUT_SECONDS"`
	RemoteTimeout int      `mapstructure:"REMOTE_TIMEOUT_SECONDS"`
	LocalStoreDir string   `mapstructure:"LOCAL_STORE_DIR"`
	LocalVaultCap int      `mapstructure:"LOCAL_VAULT_CAP"`
	AuthMode      string   `mapstructure:"AUTH_MODE"`
	AuthSecret    string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("AI_MODEL", "gemini-3-pro-preview")
	v.SetDefault("AI_TIMEOUT_SECONDS", 60)
	v.SetDefault("REMOTE_TIMEOUT_SECONDS", 3)
	v.SetDefault("LOCAL_STORE_DIR", "data")
	v.SetDefault("LOCAL_VAULT_CAP", 200)
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AI_API_KEY")
	v.BindEnv("AI_BASE_URL")
	v.BindEnv("AI_MODEL")
	v.BindEnv("AI_TIMEOUT_SECONDS")
	v.BindEnv("REMOTE_TIMEOUT_SECONDS")
	v.BindEnv("LOCAL_STORE_DIR")
	v.BindEnv("LOCAL_VAULT_CAP")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, anonymous principal)
//   - Otherwise       → "bearer" (HS256 bearer tokens signed with AUTH_SECRET)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "bearer"
}

// RemoteTimeoutDuration is the per-call deadline for remote store access
// before the record store falls back to the local vault.
func (c *Config) RemoteTimeoutDuration() time.Duration {
	return time.Duration(c.RemoteTimeout) * time.Second
}

// AITimeoutDuration is the overall deadline for one provider call.
func (c *Config) AITimeoutDuration() time.Duration {
	return time.Duration(c.AITimeout) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// mode an AUTH_SECRET must be set so bearer tokens can be verified, and an
// AI_API_KEY is required for the diagnostic path.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "bearer" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"bearer\", got %q", mode)
	}
	if mode == "bearer" && c.AuthSecret == "" {
		return fmt.Errorf(
			"AUTH_SECRET must be set when AUTH_MODE is \"bearer\" (current ENV=%q). "+
				"Refusing to start without token verification material", c.Env)
	}
	if c.IsProduction() && c.AIAPIKey == "" {
		return fmt.Errorf("AI_API_KEY is required in production")
	}
	if c.LocalVaultCap <= 0 {
		return fmt.Errorf("LOCAL_VAULT_CAP must be positive, got %d", c.LocalVaultCap)
	}
	return nil
}
