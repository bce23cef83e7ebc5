package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/easybody/auth-gateway/internal/config"
)

func TestRedisForStorageSkipsOtherDrivers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	for _, driver := range []string{config.StorageMemory, config.StorageSQLite, config.StoragePostgres} {
		cfg := config.Config{Storage: config.StorageConfig{Driver: driver}, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}
		r := RedisForStorage(cfg, zap.New(core))
		assert.Nil(t, r, driver)
		r.Close()
		assert.Error(t, r.Ping(context.Background()))
	}
	assert.Zero(t, logs.Len())
}

func TestRedisForStorageConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	core, logs := observer.New(zap.InfoLevel)
	cfg := config.Config{Storage: config.StorageConfig{Driver: config.StorageRedis}, Redis: config.RedisConfig{Addr: mr.Addr()}}

	r := RedisForStorage(cfg, zap.New(core))
	require.NotNil(t, r)
	t.Cleanup(r.Close)
	assert.NoError(t, r.Ping(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("connected to redis").Len())
}
