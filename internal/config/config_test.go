package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 2*time.Hour, cfg.CartTTL)
	assert.Equal(t, "order.completed", cfg.AMQP.OrderQueue)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Error(t, cfg.RequireServe(), "JWT_SECRET has no default")
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_USER", "booking")
	t.Setenv("DB_NAME", "classes")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CART_TTL", "15m")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("APP_TIMEZONE", "Nowhere/Unknown")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, 15*time.Minute, cfg.CartTTL)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, time.UTC, cfg.Location(), "unknown zones fall back to UTC")
	assert.NoError(t, cfg.RequireServe())
}

func TestFromViper_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	_, err := fromViper(newViper())
	assert.Error(t, err)
}

func TestFromViper_MySQLNeedsCredentials(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	_, err := fromViper(newViper())
	assert.Error(t, err)
}
