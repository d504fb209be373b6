package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// api
	AllowedOrigins         []string `toml:"allowed_origins"`
	MutationsAllowedPerMin int      `toml:"mutations_allowed_per_min"`

	// catalog & query engine
	CatalogPath      string `toml:"catalog_path"`
	QueryCacheSizeMB int    `toml:"query_cache_size_mb"`

	// stores
	StorageDriver  string   `toml:"storage_driver"` // memory | disk | redis | sqlite | postgres | s3
	FavoritesKey   string   `toml:"favorites_key"`
	HistoryKey     string   `toml:"history_key"`
	WriteTimeout   Duration `toml:"write_timeout"`
	DiskRootPath   string   `toml:"disk_root_path"`
	SqlitePath     string   `toml:"sqlite_path"`
	RedisHost      string   `toml:"redis_host"`
	RedisPort      string   `toml:"redis_port"`
	RedisDB        int      `toml:"redis_db"`
	PostgresHost   string   `toml:"postgres_host"`
	PostgresPort   string   `toml:"postgres_port"`
	PostgresDBName string   `toml:"postgres_db_name"`
	S3Bucket       string   `toml:"s3_bucket"`
	S3Region       string   `toml:"s3_region"`
	S3Endpoint     string   `toml:"s3_endpoint"`
	S3Prefix       string   `toml:"s3_prefix"`
}

// Duration lets TOML values like "5s" decode into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the TOML file at path and returns the config section for env,
// with defaults applied for anything left unset.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml file [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.applyDefaults(env)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults(env string) {
	if c.Environment == "" {
		c.Environment = strings.ToLower(env)
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "9001"
	}
	if c.StorageDriver == "" {
		c.StorageDriver = "disk"
	}
	if c.FavoritesKey == "" {
		c.FavoritesKey = "gymtracker::favorites"
	}
	if c.HistoryKey == "" {
		c.HistoryKey = "gymtracker::exercise-history"
	}
	if c.WriteTimeout.Duration == 0 {
		c.WriteTimeout.Duration = 5 * time.Second
	}
	if c.QueryCacheSizeMB == 0 {
		c.QueryCacheSizeMB = 8
	}
	if c.MutationsAllowedPerMin == 0 {
		c.MutationsAllowedPerMin = 600
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
}

func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return errors.New("catalog path not set")
	}
	if c.FavoritesKey == c.HistoryKey {
		return fmt.Errorf("favorites and history stores cannot share storage key [%s]", c.FavoritesKey)
	}
	return nil
}
