package config_test

import (
	"testing"
	"time"

	"sessionstore/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "web:pw@tcp(localhost:3306)/app")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "sql", cfg.Backend)
	assert.Equal(t, "sessions", cfg.Table)
	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, "check", cfg.SaveMode)
	assert.Equal(t, "fail", cfg.CorruptPolicy)
	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, ":8082", cfg.HTTPAddr)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "sql")
	t.Setenv("SESSION_TABLE", "web_sessions")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "host=localhost dbname=app")
	t.Setenv("SESSION_SAVE_MODE", "atomic")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SWEEP_INTERVAL", "0s")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "web_sessions", cfg.Table)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "atomic", cfg.SaveMode)
	assert.Equal(t, 30*time.Minute, cfg.TTL)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		Backend:   "sql",
		Driver:    "mysql",
		DSN:       "tcp(localhost)/app",
		TTL:       time.Hour,
		RedisAddr: "localhost:6379",
	}
	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		errMsg string
	}{
		{"missing dsn", func(c *config.Config) { c.DSN = "" }, "DB_DSN is not set in environment"},
		{"unknown backend", func(c *config.Config) { c.Backend = "etcd" }, `unknown SESSION_BACKEND "etcd"`},
		{"mongo without uri", func(c *config.Config) { c.Backend = "mongo" }, "MONGO_URI is not set in environment"},
		{"mongo without db", func(c *config.Config) {
			c.Backend = "mongo"
			c.MongoURI = "mongodb://localhost"
		}, "MONGO_DB_NAME is not set in environment"},
		{"zero ttl", func(c *config.Config) { c.TTL = 0 }, "SESSION_TTL must be positive"},
		{"negative sweep", func(c *config.Config) { c.SweepInterval = -time.Second }, "SWEEP_INTERVAL must not be negative"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := base
			test.mutate(&c)
			assert.EqualError(t, c.Validate(), test.errMsg)
		})
	}

	redis := base
	redis.Backend = "redis"
	redis.DSN = ""
	assert.NoError(t, redis.Validate())
}
