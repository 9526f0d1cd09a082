package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Storage: StorageConfig{Type: StorageMemory},
		JWT:     JWTConfig{AccessSecret: "0123456789abcdef0123456789abcdef", AccessExpiryMin: 60},
		Session: SessionConfig{ReplyDelayMin: time.Second, ReplyDelayMax: 5 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid memory", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.JWT.AccessSecret = "short" }, "at least 32"},
		{"missing secret", func(c *Config) { c.JWT.AccessSecret = "" }, "secret is required"},
		{"inverted delay", func(c *Config) { c.Session.ReplyDelayMax = 0 }, "reply delay"},
		{"negative idle timeout", func(c *Config) { c.Session.IdleTimeout = -time.Minute }, "idle timeout"},
		{"idle eviction disabled", func(c *Config) { c.Session.IdleTimeout = 0 }, ""},
		{"unknown storage", func(c *Config) { c.Storage.Type = "firestore" }, "unsupported storage"},
		{"redis without host", func(c *Config) { c.Storage.Type = StorageRedis }, "redis host"},
		{"postgres without host", func(c *Config) { c.Storage.Type = StoragePostgres }, "database host"},
		{"nats without url", func(c *Config) { c.Storage.Type = StorageNATS }, "NATS url"},
		{"redis with host", func(c *Config) {
			c.Storage.Type = StorageRedis
			c.Redis.Host = "localhost"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "kindred", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=kindred sslmode=disable", c.GetDSN())
}
