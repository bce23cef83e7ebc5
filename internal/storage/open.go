package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/persistence"
)

// Backends carries the connections a driver may need.
type Backends struct {
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
}

// Open builds the store selected by cfg.Driver. The returned close func releases
// resources owned by the store itself; shared connections are closed by their owner.
func Open(ctx context.Context, cfg config.StorageConfig, backends Backends, logger *zap.Logger) (Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.StorageMemory, "":
		logger.Warn("using in-memory storage; identities and sessions are lost on restart")
		return NewMemory(), noop, nil
	case config.StorageSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		return db, db.Close, nil
	case config.StorageRedis:
		if backends.Redis == nil || backends.Redis.Client == nil {
			return nil, nil, fmt.Errorf("redis storage requested but redis is not configured")
		}
		logger.Info("using redis storage")
		return NewRedis(backends.Redis.Client, cfg.KeyPrefix), noop, nil
	case config.StoragePostgres:
		if !backends.Postgres.Configured() {
			return nil, nil, fmt.Errorf("postgres storage requested but postgres is not configured")
		}
		logger.Info("using postgres storage")
		return NewPostgres(backends.Postgres.PoolHandle(), cfg.KeyPrefix), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
