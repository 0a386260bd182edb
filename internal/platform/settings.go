package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends for the record archive.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
)

// Settings configures the signalscoped service.
type Settings struct {
	Addr          string `koanf:"addr"`
	DatabaseURL   string `koanf:"database_url"`
	APIKey        string `koanf:"api_key"`
	WebhookSecret string `koanf:"webhook_secret"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	StorageBackend   string `koanf:"storage_backend"`
	LocalStoragePath string `koanf:"local_storage_path"`
	S3Bucket         string `koanf:"s3_bucket"`
	S3Region         string `koanf:"s3_region"`
	S3Endpoint       string `koanf:"s3_endpoint"`
	S3AccessKey      string `koanf:"s3_access_key"`
	S3SecretKey      string `koanf:"s3_secret_key"`
	GCSBucket        string `koanf:"gcs_bucket"`

	// ScoringConfig is the path of a scoring YAML file; empty uses defaults.
	ScoringConfig    string        `koanf:"scoring_config"`
	RescoreInterval  time.Duration `koanf:"rescore_interval"` // zero disables periodic rescoring
	BatchConcurrency int           `koanf:"batch_concurrency"`
	RecordCacheSize  int           `koanf:"record_cache_size"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// DefaultSettings returns the service defaults.
func DefaultSettings() Settings {
	return Settings{
		Addr:             ":8080",
		DatabaseURL:      "postgres://localhost:5432/signalscope?sslmode=disable",
		LogLevel:         "info",
		LogFormat:        "json",
		StorageBackend:   StorageLocal,
		LocalStoragePath: "/tmp/signalscope-data",
		S3Region:         "us-east-1",
		BatchConcurrency: 8,
		RecordCacheSize:  1024,
		ShutdownTimeout:  15 * time.Second,
	}
}

// LoadSettings builds Settings by layering, lowest precedence first:
//  1. DefaultSettings
//  2. the YAML file named by SIGNALSCOPE_CONFIG, if set
//  3. SIGNALSCOPE_* environment variables (SIGNALSCOPE_DATABASE_URL -> database_url)
func LoadSettings() (Settings, error) {
	k := koanf.New(".")

	if path := os.Getenv("SIGNALSCOPE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, fmt.Errorf("load settings file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("SIGNALSCOPE_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "signalscope_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Settings{}, fmt.Errorf("load settings env: %w", err)
	}

	cfg := DefaultSettings()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at startup.
func (s Settings) Validate() error {
	if s.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if s.DatabaseURL == "" {
		return errors.New("database_url must not be empty")
	}
	switch s.StorageBackend {
	case StorageLocal:
		if s.LocalStoragePath == "" {
			return errors.New("local_storage_path is required for the local storage backend")
		}
	case StorageS3:
		if s.S3Bucket == "" {
			return errors.New("s3_bucket is required for the s3 storage backend")
		}
	case StorageGCS:
		if s.GCSBucket == "" {
			return errors.New("gcs_bucket is required for the gcs storage backend")
		}
	default:
		return fmt.Errorf("unknown storage_backend %q (want local, s3 or gcs)", s.StorageBackend)
	}
	if s.BatchConcurrency < 1 {
		return errors.New("batch_concurrency must be at least 1")
	}
	if s.RecordCacheSize < 0 {
		return errors.New("record_cache_size must not be negative")
	}
	if s.RescoreInterval < 0 {
		return errors.New("rescore_interval must not be negative")
	}
	return nil
}
