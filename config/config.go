package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Auth modes supported by the request authentication guard.
const (
	AuthModeJWT   = "jwt"   // self-issued HS256 tokens
	AuthModeClerk = "clerk" // Clerk session tokens verified via OIDC/JWKS
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Clerk ClerkConfig `mapstructure:"clerk"`
}

// JWTConfig holds the signing parameters for self-issued access tokens.
// SecretKey comes from the environment only, never from config files.
type JWTConfig struct {
	SecretKey string        `mapstructure:"secretKey"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
}

type AuthConfig struct {
	Mode string `mapstructure:"mode"`
}

// ClerkConfig covers the webhook-sync deployment variant. WebhookSecret is the
// pre-shared svix signing secret; IssuerURL is the Clerk instance's Frontend API
// origin used for session token verification.
type ClerkConfig struct {
	IssuerURL     string `mapstructure:"issuerURL"`
	WebhookSecret string `mapstructure:"webhookSecret"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets and deploy-specific values are environment-only.
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.secretKey", "JWT_SECRET_KEY")
	_ = v.BindEnv("jwt.tokenTTL", "JWT_TOKEN_TTL")
	_ = v.BindEnv("clerk.webhookSecret", "CLERK_WEBHOOK_SECRET")
	_ = v.BindEnv("clerk.issuerURL", "CLERK_ISSUER_URL")
	_ = v.BindEnv("auth.mode", "AUTH_MODE")
	_ = v.BindEnv("repositories.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("repositories.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("repositories.postgres.username", "POSTGRES_USER")
	_ = v.BindEnv("repositories.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.postgres.db", "POSTGRES_DB")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate enforces the startup-fatal configuration rules. Secrets are required
// for the mode that uses them; they are never defaulted.
func (c *Config) Validate() error {
	// Password login issues self-signed tokens in both modes, so the signing
	// key is always required.
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	// The webhook endpoint is always mounted, so its signing secret is too.
	if c.Clerk.WebhookSecret == "" {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET is required")
	}
	switch c.Auth.Mode {
	case AuthModeJWT, "":
	case AuthModeClerk:
		if c.Clerk.IssuerURL == "" {
			return fmt.Errorf("CLERK_ISSUER_URL is required in %q auth mode", AuthModeClerk)
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.JWT.TokenTTL <= 0 {
		c.JWT.TokenTTL = time.Hour
	}
	return nil
}
