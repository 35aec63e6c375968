package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/lumina/internal/config"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		store, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", "path", cfg.SQLitePath)
		return store, nil
	case config.StoreRedis:
		client, err := ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info("redis store connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return NewRedisStore(client, cfg.RedisPrefix), nil
	case config.StoreMySQL:
		db, err := ConnectMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		store := NewMySQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("mysql store connected")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
