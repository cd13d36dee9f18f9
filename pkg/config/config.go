package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageLocal  = "local"
	StorageGridFS = "gridfs"
	StorageB2     = "b2"
)

// Mail providers accepted by MAIL_PROVIDER.
const (
	MailLog      = "log"
	MailSendGrid = "sendgrid"
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
	Reporting ReportingConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Mail      MailConfig
	Invites   InviteConfig
	Realtime  RealtimeConfig
	Gradebook GradebookConfig
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReportingConfig forwards error-level logs to Rollbar when a token is present.
type ReportingConfig struct {
	RollbarToken string
	CodeVersion  string
}

// CacheConfig tunes the server-truth query cache.
type CacheConfig struct {
	Enabled    bool
	TTL        time.Duration
	UIStateTTL time.Duration
}

// StorageConfig selects and configures the object store for logos, photos and class files.
type StorageConfig struct {
	Driver           string
	LocalDir         string
	PublicBaseURL    string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string

	MongoURI      string
	MongoDatabase string
	GridFSBucket  string

	B2AccountID  string
	B2AppKey     string
	B2Bucket     string
	B2PublicHost string
}

// MailConfig configures outgoing invitation e-mail.
type MailConfig struct {
	Provider       string
	SendGridAPIKey string
	FromName       string
	FromAddress    string
	AppURL         string
	Workers        int
	MaxRetries     int
}

// InviteConfig controls pending invite expiry.
type InviteConfig struct {
	TTL           time.Duration
	SweepSchedule string
}

// RealtimeConfig toggles the websocket invalidation hub.
type RealtimeConfig struct {
	Enabled        bool
	AllowedOrigins []string
}

// GradebookConfig controls gradebook exports.
type GradebookConfig struct {
	ExportDir       string
	CleanupSchedule string
	RetainFor       time.Duration
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Reporting = ReportingConfig{
		RollbarToken: v.GetString("ROLLBAR_TOKEN"),
		CodeVersion:  v.GetString("CODE_VERSION"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_QUERY_CACHE"),
		TTL:        parseDuration(v.GetString("QUERY_CACHE_TTL"), 5*time.Minute),
		UIStateTTL: parseDuration(v.GetString("UI_STATE_TTL"), 24*time.Hour),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 25 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:         v.GetString("STORAGE_LOCAL_DIR"),
		PublicBaseURL:    strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
		MongoURI:         v.GetString("MONGO_URI"),
		MongoDatabase:    v.GetString("MONGO_DATABASE"),
		GridFSBucket:     v.GetString("GRIDFS_BUCKET"),
		B2AccountID:      v.GetString("B2_ACCOUNT_ID"),
		B2AppKey:         v.GetString("B2_APP_KEY"),
		B2Bucket:         v.GetString("B2_BUCKET"),
		B2PublicHost:     strings.TrimRight(v.GetString("B2_PUBLIC_HOST"), "/"),
	}

	cfg.Mail = MailConfig{
		Provider:       strings.ToLower(v.GetString("MAIL_PROVIDER")),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		AppURL:         strings.TrimRight(v.GetString("APP_URL"), "/"),
		Workers:        v.GetInt("MAIL_WORKERS"),
		MaxRetries:     v.GetInt("MAIL_MAX_RETRIES"),
	}

	cfg.Invites = InviteConfig{
		TTL:           parseDuration(v.GetString("INVITE_TTL"), 14*24*time.Hour),
		SweepSchedule: v.GetString("INVITE_SWEEP_SCHEDULE"),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:        v.GetBool("ENABLE_REALTIME"),
		AllowedOrigins: splitAndTrim(v.GetString("REALTIME_ALLOWED_ORIGINS")),
	}

	cfg.Gradebook = GradebookConfig{
		ExportDir:       v.GetString("GRADEBOOK_EXPORT_DIR"),
		CleanupSchedule: v.GetString("GRADEBOOK_CLEANUP_SCHEDULE"),
		RetainFor:       parseDuration(v.GetString("GRADEBOOK_EXPORT_RETENTION"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classroom")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("CODE_VERSION", "dev")

	v.SetDefault("ENABLE_QUERY_CACHE", true)
	v.SetDefault("QUERY_CACHE_TTL", "5m")
	v.SetDefault("UI_STATE_TTL", "24h")

	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "classroom")
	v.SetDefault("GRIDFS_BUCKET", "files")
	v.SetDefault("B2_ACCOUNT_ID", "")
	v.SetDefault("B2_APP_KEY", "")
	v.SetDefault("B2_BUCKET", "")
	v.SetDefault("B2_PUBLIC_HOST", "https://f000.backblazeb2.com")

	v.SetDefault("MAIL_PROVIDER", MailLog)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Classroom")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@classroom.local")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)

	v.SetDefault("INVITE_TTL", "336h")
	v.SetDefault("INVITE_SWEEP_SCHEDULE", "@every 1h")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_ALLOWED_ORIGINS", "")

	v.SetDefault("GRADEBOOK_EXPORT_DIR", "./exports")
	v.SetDefault("GRADEBOOK_CLEANUP_SCHEDULE", "@every 30m")
	v.SetDefault("GRADEBOOK_EXPORT_RETENTION", "24h")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
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
