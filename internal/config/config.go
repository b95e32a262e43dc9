package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/enrollgest/internal/analytics"
	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/export"
	"github.com/dgallion1/enrollgest/internal/table"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentFiles int

	// Upload limits
	MaxUploadBytes int64

	// Task and result lifetime
	TaskTTL   time.Duration
	ResultTTL time.Duration

	// Storage
	Storage blobstore.Config

	// Timetable catalog
	TimetableURL         string
	TimetableTimeout     time.Duration
	TimetableMinInterval time.Duration

	// PDF
	PDFValidate bool

	// Output
	ExportFormats []export.Format

	// Tunables
	TunablesFile string
	Table        table.Options
	Analytics    analytics.Options
}

// Tunables is the YAML shape of TUNABLES_FILE.
type Tunables struct {
	Table     table.Options     `yaml:"table"`
	Analytics analytics.Options `yaml:"analytics"`
}

// Load reads an optional .env file, then the environment, then the tunables
// file named by TUNABLES_FILE.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8000"),

		APIKey: os.Getenv("ENROLLGEST_API_KEY"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentFiles: envInt("MAX_CONCURRENT_FILES", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		TaskTTL:   envDuration("TASK_TTL", 1*time.Hour),
		ResultTTL: envDuration("RESULT_TTL", 7*24*time.Hour),

		Storage: blobstore.Config{
			Type:              blobstore.Type(envOr("STORAGE_TYPE", string(blobstore.TypeLocal))),
			LocalPath:         envOr("STORAGE_LOCAL_PATH", "./data"),
			S3Bucket:          os.Getenv("STORAGE_S3_BUCKET"),
			S3Region:          os.Getenv("STORAGE_S3_REGION"),
			S3Endpoint:        os.Getenv("STORAGE_S3_ENDPOINT"),
			S3AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			S3SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},

		TimetableURL:         os.Getenv("TIMETABLE_URL"),
		TimetableTimeout:     envDuration("TIMETABLE_TIMEOUT", 60*time.Second),
		TimetableMinInterval: envDuration("TIMETABLE_MIN_INTERVAL", 500*time.Millisecond),

		PDFValidate: envBool("PDF_VALIDATE", false),

		TunablesFile: os.Getenv("TUNABLES_FILE"),
		Table:        table.DefaultOptions(),
		Analytics:    analytics.DefaultOptions(),
	}

	formats, err := export.ParseFormats(envOr("EXPORT_FORMATS", "csv"))
	if err != nil {
		return cfg, fmt.Errorf("EXPORT_FORMATS: %w", err)
	}
	cfg.ExportFormats = formats

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = 1 * time.Hour
	}

	if cfg.TunablesFile != "" {
		t, err := LoadTunables(cfg.TunablesFile)
		if err != nil {
			return cfg, err
		}
		cfg.applyTunables(t)
	}

	return cfg, nil
}

// LoadTunables reads a YAML tunables file.
func LoadTunables(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, fmt.Errorf("read tunables: %w", err)
	}
	var t Tunables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("parse tunables %s: %w", path, err)
	}
	return t, nil
}

// applyTunables overrides only the fields the file sets.
func (c *Config) applyTunables(t Tunables) {
	if t.Table.RowGapThreshold > 0 {
		c.Table.RowGapThreshold = t.Table.RowGapThreshold
	}
	for name, tol := range t.Table.ColumnTolerances {
		c.Table.ColumnTolerances[name] = tol
	}
	if len(t.Table.ExpectedHeaders) > 0 {
		c.Table.ExpectedHeaders = t.Table.ExpectedHeaders
	}
	if t.Analytics.GraduateFloor > 0 {
		c.Analytics.GraduateFloor = t.Analytics.GraduateFloor
	}
	if t.Analytics.UnderenrolledThreshold > 0 {
		c.Analytics.UnderenrolledThreshold = t.Analytics.UnderenrolledThreshold
	}
	if t.Analytics.IgnoredNames != nil {
		c.Analytics.IgnoredNames = t.Analytics.IgnoredNames
	}
}

func (c Config) Validate() error {
	switch c.Storage.Type {
	case blobstore.TypeLocal:
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("STORAGE_LOCAL_PATH is required for local storage")
		}
	case blobstore.TypeS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required for s3 storage")
		}
		if c.Storage.S3Region == "" {
			return fmt.Errorf("STORAGE_S3_REGION is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.ResultTTL < 0 {
		return fmt.Errorf("RESULT_TTL must not be negative")
	}
	if c.TimetableMinInterval < 0 {
		return fmt.Errorf("TIMETABLE_MIN_INTERVAL must not be negative")
	}
	if c.Table.RowGapThreshold <= 0 {
		return fmt.Errorf("row_gap_threshold must be positive")
	}
	for name, tol := range c.Table.ColumnTolerances {
		if tol < 0 {
			return fmt.Errorf("column tolerance for %q must not be negative", name)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
