package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/storage"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// backups_cmd copies the favorites and history documents from the storage
// the service uses to a second storage driver, e.g. disk -> s3.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	targetDriver := flag.String("target-driver", "s3", "storage driver to back up to [disk | sqlite | redis | postgres | s3]")
	targetDiskRoot := flag.String("target-disk-root", "", "root dir, when backing up to the disk driver")
	targetSqlitePath := flag.String("target-sqlite-path", "", "db file, when backing up to the sqlite driver")
	restore := flag.Bool("restore", false, "copy from the target back to the service storage")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.LogLevel,
	})

	secrets := storage.Secrets{
		RedisPassword:     os.Getenv("GYMTRACKER_REDIS_PASS"),
		PostgresUser:      os.Getenv("GYMTRACKER_POSTGRES_USER"),
		PostgresPassword:  os.Getenv("GYMTRACKER_POSTGRES_PASS"),
		S3AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}

	targetCfg := *cfg
	targetCfg.StorageDriver = *targetDriver
	if *targetDiskRoot != "" {
		targetCfg.DiskRootPath = *targetDiskRoot
	}
	if *targetSqlitePath != "" {
		targetCfg.SqlitePath = *targetSqlitePath
	}
	if targetCfg.StorageDriver == cfg.StorageDriver &&
		targetCfg.DiskRootPath == cfg.DiskRootPath &&
		targetCfg.SqlitePath == cfg.SqlitePath {
		log.Fatalln("backup target is the same as the service storage")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	serviceStorage, err := storage.New(ctx, storage.NewParams{Config: cfg, Secrets: secrets})
	if err != nil {
		log.Fatalf("open service storage [%s]: %s", cfg.StorageDriver, err)
	}
	targetStorage, err := storage.New(ctx, storage.NewParams{Config: &targetCfg, Secrets: secrets})
	if err != nil {
		_ = serviceStorage.Close()
		log.Fatalf("open target storage [%s]: %s", targetCfg.StorageDriver, err)
	}

	src, dst := serviceStorage, targetStorage
	if *restore {
		log.Warnln("!! attention: restoring, service storage documents will be overwritten")
		src, dst = targetStorage, serviceStorage
	}

	copied, copyErr := storage.Copy(ctx, src, dst, cfg.FavoritesKey, cfg.HistoryKey)
	closeErr := multierr.Combine(serviceStorage.Close(), targetStorage.Close())
	if copyErr != nil {
		log.Fatalf("backup failed after %d documents: %s", copied, copyErr)
	}
	if closeErr != nil {
		log.Errorf("close storages: %s", closeErr)
	}

	log.Infof("done, %d documents copied [%s] -> [%s]", copied, cfg.StorageDriver, targetCfg.StorageDriver)
}
