package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"turnero/client"
	"turnero/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendRedis   = "redis"
	BackendEtcd    = "etcd"
	BackendKeyring = "keyring"
	BackendMySQL   = "mysql"
)

// Open builds the session store selected by cfg.Store.Backend. The returned closer
// releases any connection the store owns and is never nil.
func Open(ctx context.Context, cfg *config.Config) (client.Store, func() error, error) {
	noop := func() error { return nil }
	sc := cfg.Store

	switch sc.Backend {
	case BackendMemory:
		return client.NewMemoryStore(), noop, nil

	case BackendFile, "":
		path := sc.FilePath
		if path == "" {
			p, err := DefaultSessionPath(sc.Profile)
			if err != nil {
				return nil, noop, err
			}
			path = p
		}
		return NewFileStore(afero.NewOsFs(), path), noop, nil

	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisStore(rdb, sc.RedisPrefix, sc.Profile), rdb.Close, nil

	case BackendEtcd:
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Context:     ctx,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		return NewEtcdStore(cli, sc.EtcdPrefix, sc.Profile), cli.Close, nil

	case BackendKeyring:
		return NewKeyringStore(sc.KeyringService, sc.Profile), noop, nil

	case BackendMySQL:
		db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		if err := Migrate(db); err != nil {
			return nil, noop, fmt.Errorf("failed to migrate database: %w", err)
		}
		closer := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return NewSQLStore(db, sc.Profile), closer, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// DefaultSessionPath is <user config dir>/turnero/<profile>.json.
func DefaultSessionPath(profile string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(dir, "turnero", profile+".json"), nil
}
