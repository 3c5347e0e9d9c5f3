package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_MemoryBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("LOCK_TTL", "")
	t.Setenv("LOCK_WAIT", "750ms")
	t.Setenv("EVENTS_ENABLED", "off")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")

	cfg := Load()

	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.LockWait)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.RabbitURL)
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.DBHost)
}

func TestLoad_MySQLBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "mysql")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASS", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "showtime")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "showtime", cfg.DBName)
	assert.Equal(t, 25, cfg.DBMaxOpenConns, "invalid values fall back to the default")
	assert.Equal(t, LockRedis, cfg.LockBackend)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "-5s")

	cfg := LoadCacheConfig()

	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
	assert.Equal(t, 30*time.Second, cfg.TTL)
	assert.Equal(t, "showtime:cache", cfg.Prefix)
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "showtime:rl", cfg.Prefix)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "2")
	cfg := LoadRedisConfig()
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
}
