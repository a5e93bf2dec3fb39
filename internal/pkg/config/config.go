package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string
}

// DBConfig holds database connection settings.
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// GatewayConfig bounds every outbound persistence call.
type GatewayConfig struct {
	CallTimeout time.Duration
	ReadRetries int
}

// ImageConfig holds attachment storage settings.
type ImageConfig struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// SessionConfig holds per-session cache settings.
type SessionConfig struct {
	IdleTTL time.Duration
}

// Config holds all configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Log     LogConfig
	Gateway GatewayConfig
	Images  ImageConfig
	Session SessionConfig
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("APP_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		DB: DBConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", ""),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 12),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Gateway: GatewayConfig{
			CallTimeout: getEnvAsDuration("GATEWAY_CALL_TIMEOUT", 5*time.Second),
			ReadRetries: getEnvAsInt("GATEWAY_READ_RETRIES", 0),
		},
		Images: ImageConfig{
			Dir:      getEnv("IMAGE_DIR", "./uploads"),
			BaseURL:  getEnv("IMAGE_BASE_URL", "/api/v1/images"),
			MaxBytes: int64(getEnvAsInt("IMAGE_MAX_BYTES", 10<<20)),
		},
		Session: SessionConfig{
			IdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.SigningKey == "" {
		if c.Server.Env != "development" {
			return fmt.Errorf("JWT_SIGNING_KEY is required in %s", c.Server.Env)
		}
		c.JWT.SigningKey = "dev-signing-key"
	}
	if c.Gateway.CallTimeout <= 0 {
		return fmt.Errorf("GATEWAY_CALL_TIMEOUT must be positive")
	}
	if c.Images.MaxBytes <= 0 {
		return fmt.Errorf("IMAGE_MAX_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogFields returns the non-secret settings for the startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("port", c.Server.Port),
		zap.Duration("gateway_timeout", c.Gateway.CallTimeout),
		zap.Int("gateway_read_retries", c.Gateway.ReadRetries),
		zap.String("image_dir", c.Images.Dir),
		zap.Duration("session_idle_ttl", c.Session.IdleTTL),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
