package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

const defaultConfigPath = "config.yaml"

var (
	configOnce sync.Once
	appConfig  *Config
	configErr  error
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       logger.Config   `yaml:"log"`
	Scan      ScanConfig      `yaml:"scan"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Minio     MinioConfig     `yaml:"minio"`
	S3        S3Config        `yaml:"s3"`
	GCS       GCSConfig       `yaml:"gcs"`
	AI        AIConfig        `yaml:"ai"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type ScanConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	// Traits is appended to every source's system prompt
	Traits string `yaml:"traits"`
}

type IngestConfig struct {
	Binarize    bool  `yaml:"binarize"`
	MaxFileSize int64 `yaml:"maxFileSize"`
	MaxPdfPages int   `yaml:"maxPdfPages"`
	// files accepted in one upload request
	MaxFiles int `yaml:"maxFiles"`
}

type StoreConfig struct {
	// memory | redis | firestore
	Backend string `yaml:"backend"`
	// none | minio | s3 | gcs
	Blobs string `yaml:"blobs"`
	// object key prefix used when blobs are offloaded
	BlobPrefix string `yaml:"blobPrefix"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			AllowedOrigins:  []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Log: logger.Config{
			Level:       "info",
			Encoding:    "console",
			OutputPaths: []string{"stdout"},
		},
		Scan: ScanConfig{
			Concurrency:  4,
			MaxAttempts:  5,
			InitialDelay: 5 * time.Second,
		},
		Ingest: IngestConfig{
			MaxFileSize: 50 << 20,
			MaxPdfPages: 50,
			MaxFiles:    20,
		},
		Store: StoreConfig{
			Backend:    "memory",
			Blobs:      "none",
			BlobPrefix: "homework",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "skidhw",
		},
		Firestore: FirestoreConfig{
			Collection: "homeworks",
		},
	}
}

// Load reads .env next to the config file, then the YAML file itself.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Warning: config file not found at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loaded once from
// SKIDHW_CONFIG or ./config.yaml
func Get() (*Config, error) {
	configOnce.Do(func() {
		path := os.Getenv("SKIDHW_CONFIG")
		if path == "" {
			path = defaultConfigPath
		}
		appConfig, configErr = Load(path)
	})
	return appConfig, configErr
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SKIDHW_SERVER_ADDR")
	setString(&cfg.Log.Level, "SKIDHW_LOG_LEVEL")
	setString(&cfg.Store.Backend, "SKIDHW_STORE_BACKEND")
	setString(&cfg.Store.Blobs, "SKIDHW_STORE_BLOBS")
	applyRedisEnv(&cfg.Redis)
	applyFirestoreEnv(&cfg.Firestore)
	applyMinioEnv(&cfg.Minio)
	applyS3Env(&cfg.S3)
	applyGCSEnv(&cfg.GCS)
}

// Validate checks the values the rest of the program relies on
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1, got %d", c.Scan.Concurrency)
	}
	if c.Scan.MaxAttempts < 1 {
		return fmt.Errorf("scan.maxAttempts must be at least 1, got %d", c.Scan.MaxAttempts)
	}
	if c.Scan.InitialDelay < 0 {
		return fmt.Errorf("scan.initialDelay must not be negative")
	}
	if c.Ingest.MaxFiles < 1 {
		return fmt.Errorf("ingest.maxFiles must be at least 1, got %d", c.Ingest.MaxFiles)
	}
	switch c.Store.Backend {
	case "memory", "redis", "firestore":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	switch c.Store.Blobs {
	case "", "none", "minio", "s3", "gcs":
	default:
		return fmt.Errorf("unsupported blob storage: %s", c.Store.Blobs)
	}
	return c.AI.Validate()
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}
