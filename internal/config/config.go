package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is assembled from an optional .env file and the environment.
// Nested keys map to upper-cased env vars, e.g. database.url -> DATABASE_URL.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port              string        `mapstructure:"port" default:"8080"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" default:"5s"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns" default:"10"`
	MinConns        int32         `mapstructure:"min_conns" default:"2"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" default:"10m"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time" default:"5m"`
	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `mapstructure:"auto_migrate" default:"true"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry" default:"24h"`
}

type SyncConfig struct {
	DefaultLimit int `mapstructure:"default_limit" default:"150"`
	MaxLimit     int `mapstructure:"max_limit" default:"1000"`
	// BoundaryLag is how far sync tokens trail the database clock. It must
	// cover the longest gap between stamping a row and committing it.
	BoundaryLag time.Duration `mapstructure:"boundary_lag" default:"1s"`
}

// BackupConfig selects where item backups are written. Driver "none"
// disables the backup endpoint.
type BackupConfig struct {
	Driver    string `mapstructure:"driver" default:"none"`
	Endpoint  string `mapstructure:"endpoint" default:""`
	AccessKey string `mapstructure:"access_key" default:""`
	SecretKey string `mapstructure:"secret_key" default:""`
	Bucket    string `mapstructure:"bucket" default:"notesync-backups"`
	Region    string `mapstructure:"region" default:"us-east-1"`
	UseSSL    bool   `mapstructure:"use_ssl" default:"false"`

	Workers    int           `mapstructure:"workers" default:"2"`
	QueueSize  int           `mapstructure:"queue_size" default:"256"`
	MaxRetries uint64        `mapstructure:"max_retries" default:"3"`
	RetryBase  time.Duration `mapstructure:"retry_base" default:"200ms"`
	Timeout    time.Duration `mapstructure:"timeout" default:"30s"`
	OnCreate   bool          `mapstructure:"on_create" default:"false"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"json"`
}

const (
	BackupDriverNone  = "none"
	BackupDriverMinio = "minio"
	BackupDriverS3    = "s3"
)

// LoadConfig reads dir/.env when present, then the environment.
func LoadConfig(dir string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	bindValues(v, Config{}, "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("invalid JWT_EXPIRY format")
	}
	if c.Sync.DefaultLimit <= 0 || c.Sync.MaxLimit <= 0 {
		return errors.New("sync limits must be positive")
	}
	if c.Sync.DefaultLimit > c.Sync.MaxLimit {
		return fmt.Errorf("SYNC_DEFAULT_LIMIT (%d) exceeds SYNC_MAX_LIMIT (%d)", c.Sync.DefaultLimit, c.Sync.MaxLimit)
	}
	if c.Sync.BoundaryLag < 0 {
		return errors.New("SYNC_BOUNDARY_LAG must not be negative")
	}

	switch c.Backup.Driver {
	case BackupDriverNone:
	case BackupDriverMinio, BackupDriverS3:
		if c.Backup.Bucket == "" {
			return errors.New("BACKUP_BUCKET is required when backups are enabled")
		}
		if c.Backup.Workers <= 0 || c.Backup.QueueSize <= 0 {
			return errors.New("backup workers and queue size must be positive")
		}
	default:
		return fmt.Errorf("unknown BACKUP_DRIVER %q", c.Backup.Driver)
	}
	return nil
}

// bindValues registers every mapstructure key with its default so that
// AutomaticEnv can resolve it during Unmarshal.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}
