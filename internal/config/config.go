package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, assembled from environment
// variables with sensible defaults for local development.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Quota     QuotaConfig
	Audio     AudioConfig
	Payments  PaymentsConfig
	Analytics AnalyticsConfig
	Archive   ArchiveConfig
	HTTP      HTTPConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env     string
	TempDir string
}

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Backend     string // "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string
}

// OpenAIConfig holds transcription backend credentials
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty means the public API
}

// QuotaConfig holds the free-allowance knob
type QuotaConfig struct {
	FreeAllowanceSeconds float64
}

// AudioConfig holds the upload ceiling and compression profile
type AudioConfig struct {
	MaxRawSizeBytes   int64
	BitrateKbps       int
	Channels          int
	TranscribeTimeout time.Duration
}

// PaymentsConfig holds the payment gateway settings. Empty ShopID
// disables payments entirely.
type PaymentsConfig struct {
	ShopID       string
	SecretKey    string
	ReturnURL    string
	PollInterval time.Duration
	TariffsPath  string
}

// AnalyticsConfig holds the workbook mirror settings. Empty path
// disables the mirror.
type AnalyticsConfig struct {
	WorkbookPath string
	BufferSize   int
}

// ArchiveConfig holds the transcript object-store settings. Empty
// endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// HTTPConfig holds the API server listen address
type HTTPConfig struct {
	Host string
	Port string
}

// Addr returns the host:port the server binds to
func (hc HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%s", hc.Host, hc.Port)
}

// Load reads .env if present, assembles the configuration and
// validates it. This is the main entry point for configuration.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:     getEnvOrDefault("APP_ENV", "development"),
			TempDir: getEnvOrDefault("TEMP_DIR", os.TempDir()),
		},
		Database: databaseFromEnv(),
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		},
		Quota: QuotaConfig{
			FreeAllowanceSeconds: getEnvFloat("FREE_ALLOWANCE_SECONDS", 300),
		},
		Audio: AudioConfig{
			MaxRawSizeBytes:   getEnvInt64("MAX_RAW_SIZE_BYTES", 24<<20),
			BitrateKbps:       getEnvInt("COMPRESSION_BITRATE_KBPS", 32),
			Channels:          getEnvInt("COMPRESSION_CHANNELS", 1),
			TranscribeTimeout: getEnvSeconds("TRANSCRIBE_TIMEOUT_SECONDS", 600),
		},
		Payments: PaymentsConfig{
			ShopID:       getEnvOrDefault("YOOKASSA_SHOP_ID", ""),
			SecretKey:    getEnvOrDefault("YOOKASSA_SECRET_KEY", ""),
			ReturnURL:    getEnvOrDefault("YOOKASSA_RETURN_URL", ""),
			PollInterval: getEnvSeconds("PAYMENT_POLL_SECONDS", 60),
			TariffsPath:  getEnvOrDefault("TARIFFS_PATH", ""),
		},
		Analytics: AnalyticsConfig{
			WorkbookPath: getEnvOrDefault("ANALYTICS_WORKBOOK_PATH", ""),
			BufferSize:   getEnvInt("ANALYTICS_BUFFER", 64),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnvOrDefault("MINIO_ENDPOINT", ""),
			AccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
			Bucket:    getEnvOrDefault("MINIO_BUCKET", "transcripts"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		HTTP: HTTPConfig{
			Host: getEnvOrDefault("HTTP_HOST", "0.0.0.0"),
			Port: getEnvOrDefault("HTTP_PORT", "8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Backend:     getEnvOrDefault("DB_BACKEND", "sqlite"),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "data/sttd.db"),
		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
	}
}

// LoadDatabase reads only the database settings. Offline commands use
// it so they run without the full serving configuration.
func LoadDatabase() (DatabaseConfig, error) {
	if err := LoadEnv(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("failed to load environment: %w", err)
	}
	db := databaseFromEnv()
	if err := db.validate(); err != nil {
		return DatabaseConfig{}, err
	}
	return db, nil
}

func (dc DatabaseConfig) validate() error {
	switch dc.Backend {
	case "sqlite":
		if dc.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case "postgres":
		if dc.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid DB_BACKEND %q: must be sqlite or postgres", dc.Backend)
	}
	return nil
}

// Validate implements fail-fast: a process with a broken configuration
// should not start.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required - set it in environment or .env file")
	}
	if !strings.HasPrefix(c.OpenAI.APIKey, "sk-") {
		return fmt.Errorf("invalid OPENAI_API_KEY format: must start with 'sk-'")
	}

	if c.Quota.FreeAllowanceSeconds < 0 {
		return fmt.Errorf("FREE_ALLOWANCE_SECONDS cannot be negative")
	}
	if c.Audio.MaxRawSizeBytes <= 0 {
		return fmt.Errorf("MAX_RAW_SIZE_BYTES must be positive")
	}
	if c.Audio.BitrateKbps <= 0 || c.Audio.Channels <= 0 {
		return fmt.Errorf("compression bitrate and channels must be positive")
	}
	if c.Audio.TranscribeTimeout < 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT_SECONDS cannot be negative")
	}

	if c.Payments.Enabled() {
		if c.Payments.SecretKey == "" {
			return fmt.Errorf("YOOKASSA_SECRET_KEY is required when YOOKASSA_SHOP_ID is set")
		}
		if c.Payments.ReturnURL == "" {
			return fmt.Errorf("YOOKASSA_RETURN_URL is required when YOOKASSA_SHOP_ID is set")
		}
		if c.Payments.PollInterval <= 0 {
			return fmt.Errorf("PAYMENT_POLL_SECONDS must be positive")
		}
	}

	if c.Archive.Enabled() {
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
		}
		if c.Archive.Bucket == "" {
			return fmt.Errorf("MINIO_BUCKET cannot be empty")
		}
	}

	if c.Analytics.BufferSize <= 0 {
		return fmt.Errorf("ANALYTICS_BUFFER must be positive")
	}
	if c.HTTP.Port == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	return nil
}

// Enabled reports whether a payment gateway is configured.
func (pc PaymentsConfig) Enabled() bool {
	return pc.ShopID != ""
}

// Enabled reports whether a transcript archive is configured.
func (ac ArchiveConfig) Enabled() bool {
	return ac.Endpoint != ""
}

// Enabled reports whether the workbook mirror is configured.
func (ac AnalyticsConfig) Enabled() bool {
	return ac.WorkbookPath != ""
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
