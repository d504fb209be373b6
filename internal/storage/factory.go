package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"

	log "github.com/sirupsen/logrus"
)

// Secrets carries credentials that never live in the TOML config.
type Secrets struct {
	RedisPassword     string
	PostgresUser      string
	PostgresPassword  string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

type NewParams struct {
	Config         *config.Config
	Secrets        Secrets
	TracingEnabled bool
}

// New builds the storage driver selected by the config.
func New(ctx context.Context, params NewParams) (Storage, error) {
	cfg := params.Config
	driver := Driver(strings.ToLower(cfg.StorageDriver))
	log.Debugf("using storage driver: %s", driver)

	switch driver {
	case DriverMemory:
		log.Warnln("memory storage driver in use, nothing will survive a restart")
		return NewMemoryStorage(), nil
	case DriverDisk:
		return NewDiskStorage(cfg.DiskRootPath)
	case DriverSqlite:
		return NewSqliteStorage(ctx, cfg.SqlitePath)
	case DriverRedis:
		rdb := NewRedisClient(ctx, NewRedisClientParams{
			Host:           cfg.RedisHost,
			Port:           cfg.RedisPort,
			Password:       params.Secrets.RedisPassword,
			DB:             cfg.RedisDB,
			TracingEnabled: params.TracingEnabled,
		})
		return NewRedisStorage(rdb), nil
	case DriverPostgres:
		pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         params.Secrets.PostgresUser,
			DBPassword:     params.Secrets.PostgresPassword,
			MaxConns:       4,
			TracingEnabled: params.TracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		pgStorage, err := NewPostgresStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return pgStorage, nil
	case DriverS3:
		return NewS3Storage(ctx, S3Params{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     params.Secrets.S3AccessKeyID,
			SecretAccessKey: params.Secrets.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}
