package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	BlobProviderCloudinary = "cloudinary"
	BlobProviderLocal      = "local"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Blob      BlobConfig
	Lifecycle LifecycleConfig
	Academic  AcademicConfig
	Jobs      JobsConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

// URL renders the connection settings as a postgres:// URL for tooling that
// does not accept key/value DSNs.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BlobConfig selects and configures the blob storage provider.
type BlobConfig struct {
	Provider           string
	CloudName          string
	APIKey             string
	APISecret          string
	Folder             string
	LocalDir           string
	PublicBaseURL      string
	MaxUploadSizeBytes int64
	OperationTimeout   time.Duration
}

// LifecycleConfig tunes the purge sweep. The retention window itself is fixed.
type LifecycleConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	LeaseTTL      time.Duration
}

// AcademicConfig lists the accepted year and semester values for subject files.
type AcademicConfig struct {
	AllowedYears     []int
	AllowedSemesters []int
}

// JobsConfig configures the background blob cleanup workers.
type JobsConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		CacheTTL: parseDuration(v.GetString("FEED_CACHE_TTL"), 30*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Blob = BlobConfig{
		Provider:           strings.ToLower(v.GetString("BLOB_PROVIDER")),
		CloudName:          v.GetString("CLOUDINARY_CLOUD_NAME"),
		APIKey:             v.GetString("CLOUDINARY_API_KEY"),
		APISecret:          v.GetString("CLOUDINARY_API_SECRET"),
		Folder:             v.GetString("CLOUDINARY_FOLDER"),
		LocalDir:           v.GetString("BLOB_LOCAL_DIR"),
		PublicBaseURL:      strings.TrimRight(v.GetString("BLOB_PUBLIC_BASE_URL"), "/"),
		MaxUploadSizeBytes: parseSize(v.GetString("MAX_UPLOAD_SIZE"), 20*units.MiB),
		OperationTimeout:   parseDuration(v.GetString("BLOB_OPERATION_TIMEOUT"), 60*time.Second),
	}

	cfg.Lifecycle = LifecycleConfig{
		SweepInterval: parseDuration(v.GetString("LIFECYCLE_SWEEP_INTERVAL"), 0),
		BatchSize:     v.GetInt("LIFECYCLE_BATCH_SIZE"),
		LeaseTTL:      parseDuration(v.GetString("LIFECYCLE_LEASE_TTL"), 30*time.Minute),
	}

	years, err := parseInts(v.GetString("ALLOWED_YEARS"))
	if err != nil {
		return nil, fmt.Errorf("parse ALLOWED_YEARS: %w", err)
	}
	semesters, err := parseInts(v.GetString("ALLOWED_SEMESTERS"))
	if err != nil {
		return nil, fmt.Errorf("parse ALLOWED_SEMESTERS: %w", err)
	}
	cfg.Academic = AcademicConfig{AllowedYears: years, AllowedSemesters: semesters}

	cfg.Jobs = JobsConfig{
		Workers:      v.GetInt("BLOB_CLEANUP_WORKERS"),
		BufferSize:   v.GetInt("BLOB_CLEANUP_BUFFER"),
		MaxRetries:   v.GetInt("BLOB_CLEANUP_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("BLOB_CLEANUP_RETRY_DELAY"), 5*time.Second),
		DrainTimeout: parseDuration(v.GetString("BLOB_CLEANUP_DRAIN_TIMEOUT"), 10*time.Second),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edupacket")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FEED_CACHE_TTL", "30s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "https://edu-packet.vercel.app")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BLOB_PROVIDER", BlobProviderLocal)
	v.SetDefault("CLOUDINARY_FOLDER", "eduportal_files")
	v.SetDefault("BLOB_LOCAL_DIR", "./uploads")
	v.SetDefault("BLOB_PUBLIC_BASE_URL", "http://localhost:5000/files")
	v.SetDefault("MAX_UPLOAD_SIZE", "20MB")
	v.SetDefault("BLOB_OPERATION_TIMEOUT", "60s")

	v.SetDefault("LIFECYCLE_SWEEP_INTERVAL", "0")
	v.SetDefault("LIFECYCLE_BATCH_SIZE", 100)
	v.SetDefault("LIFECYCLE_LEASE_TTL", "30m")

	v.SetDefault("ALLOWED_YEARS", "1,2,3")
	v.SetDefault("ALLOWED_SEMESTERS", "1,2")

	v.SetDefault("BLOB_CLEANUP_WORKERS", 2)
	v.SetDefault("BLOB_CLEANUP_RETRIES", 3)
	v.SetDefault("BLOB_CLEANUP_RETRY_DELAY", "5s")
	v.SetDefault("BLOB_CLEANUP_BUFFER", 64)
	v.SetDefault("BLOB_CLEANUP_DRAIN_TIMEOUT", "10s")

	v.SetDefault("ENABLE_METRICS", true)
}

func isMissingFile(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseSize(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	size, err := units.RAMInBytes(raw)
	if err != nil || size <= 0 {
		return fallback
	}
	return size
}

func parseInts(raw string) ([]int, error) {
	parts := splitAndTrim(raw)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
