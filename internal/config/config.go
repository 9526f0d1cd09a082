package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	AI       AIConfig
	Session  SessionConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects the profile store backend: memory, redis, postgres or nats.
type StorageConfig struct {
	Type string
}

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageNATS     = "nats"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type NATSConfig struct {
	URL             string
	UsersBucket     string
	DismissedBucket string
}

type JWTConfig struct {
	AccessSecret    string
	AccessExpiryMin int
}

type AIConfig struct {
	GeminiAPIKey      string
	GeminiModel       string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// SessionConfig bounds the simulated reply delay. Sessions unused for IdleTimeout are
// signed out; zero keeps them until logout.
type SessionConfig struct {
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	IdleTimeout   time.Duration
}

type LoggingConfig struct {
	Level string
}

// Load loads configuration from environment variables or .env file
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("ENV", "development")
	viper.SetDefault("STORAGE_TYPE", StorageMemory)
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("NATS_USERS_BUCKET", "users")
	viper.SetDefault("NATS_DISMISSED_BUCKET", "explored")
	viper.SetDefault("JWT_ACCESS_EXPIRY_MIN", 60*24*7)
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("OPENAI_MODEL", "gpt-4.1-nano-2025-04-14")
	viper.SetDefault("AI_REQUESTS_PER_SECOND", 5)
	viper.SetDefault("AI_TIMEOUT", "30s")
	viper.SetDefault("REPLY_DELAY_MIN", "1s")
	viper.SetDefault("REPLY_DELAY_MAX", "5s")
	viper.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	viper.SetDefault("LOG_LEVEL", "info")

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = viper.ReadInConfig()

	config := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("SERVER_HOST"),
			Port:         viper.GetInt("SERVER_PORT"),
			Env:          viper.GetString("ENV"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // SSE streams stay open
		},
		Storage: StorageConfig{
			Type: viper.GetString("STORAGE_TYPE"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		NATS: NATSConfig{
			URL:             viper.GetString("NATS_URL"),
			UsersBucket:     viper.GetString("NATS_USERS_BUCKET"),
			DismissedBucket: viper.GetString("NATS_DISMISSED_BUCKET"),
		},
		JWT: JWTConfig{
			AccessSecret:    viper.GetString("JWT_ACCESS_SECRET"),
			AccessExpiryMin: viper.GetInt("JWT_ACCESS_EXPIRY_MIN"),
		},
		AI: AIConfig{
			GeminiAPIKey:      viper.GetString("GEMINI_API_KEY"),
			GeminiModel:       viper.GetString("GEMINI_MODEL"),
			OpenAIAPIKey:      viper.GetString("OPENAI_API_KEY"),
			OpenAIModel:       viper.GetString("OPENAI_MODEL"),
			OpenAIBaseURL:     viper.GetString("OPENAI_BASE_URL"),
			RequestsPerSecond: viper.GetFloat64("AI_REQUESTS_PER_SECOND"),
			Timeout:           viper.GetDuration("AI_TIMEOUT"),
		},
		Session: SessionConfig{
			ReplyDelayMin: viper.GetDuration("REPLY_DELAY_MIN"),
			ReplyDelayMax: viper.GetDuration("REPLY_DELAY_MAX"),
			IdleTimeout:   viper.GetDuration("SESSION_IDLE_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates critical configuration values
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT access secret is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return fmt.Errorf("JWT access secret must be at least 32 characters")
	}
	if c.JWT.AccessExpiryMin <= 0 {
		return fmt.Errorf("JWT access expiry must be positive")
	}
	if c.Session.ReplyDelayMin < 0 || c.Session.ReplyDelayMax < c.Session.ReplyDelayMin {
		return fmt.Errorf("reply delay range is invalid: [%s, %s]", c.Session.ReplyDelayMin, c.Session.ReplyDelayMax)
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	case StorageNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS url is required")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
