package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageDriverLocal    = "local"
	StorageDriverSupabase = "supabase"
)

// Rate limiter drivers.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
	RateLimitOff    = "off"
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
	Orders    OrdersConfig
	Pricing   PricingConfig
	Upload    UploadConfig
	Storage   StorageConfig
	Supabase  SupabaseConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
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

// OrdersConfig tunes the order lifecycle.
type OrdersConfig struct {
	CancelWindow        time.Duration
	EstimatedTurnaround time.Duration
	UnpaidTTL           time.Duration
	// Transitions is a comma list of from:to pairs, or "permissive".
	Transitions string
}

// PricingConfig holds per-page rates.
type PricingConfig struct {
	BWRate    float64
	ColorRate float64
}

// UploadConfig controls intake validation.
type UploadConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// StorageConfig selects the file backend and download signing.
type StorageConfig struct {
	Driver          string
	LocalDir        string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// SupabaseConfig configures the object storage bucket.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
}

// RateLimitConfig governs login throttling.
type RateLimitConfig struct {
	Driver        string
	MaxAttempts   int
	Window        time.Duration
	SweepInterval time.Duration
}

// CleanupConfig schedules the retention sweep.
type CleanupConfig struct {
	Enabled     bool
	DailyAt     string
	Timezone    string
	Retention   time.Duration
	OrphanGrace time.Duration
	BatchSize   int
	Workers     int
	Retries     int
}

// BootstrapConfig seeds the first superadmin on an empty admin table.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Orders = OrdersConfig{
		CancelWindow:        parseDuration(v.GetString("ORDER_CANCEL_WINDOW"), 30*time.Second),
		EstimatedTurnaround: parseDuration(v.GetString("ORDER_ESTIMATED_TURNAROUND"), 30*time.Minute),
		UnpaidTTL:           parseDuration(v.GetString("ORDER_UNPAID_TTL"), 12*time.Hour),
		Transitions:         strings.TrimSpace(v.GetString("ORDER_TRANSITIONS")),
	}

	cfg.Pricing = PricingConfig{
		BWRate:    v.GetFloat64("PRICING_BW_RATE"),
		ColorRate: v.GetFloat64("PRICING_COLOR_RATE"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 25 * 1024 * 1024
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeBytes:  maxUpload,
		AllowedExtensions: splitAndTrim(v.GetString("UPLOAD_ALLOWED_EXTENSIONS")),
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:        v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 10*time.Minute),
	}

	cfg.Supabase = SupabaseConfig{
		URL:        v.GetString("SUPABASE_URL"),
		ServiceKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		Bucket:     v.GetString("SUPABASE_BUCKET"),
	}

	cfg.RateLimit = RateLimitConfig{
		Driver:        strings.ToLower(v.GetString("RATE_LIMIT_DRIVER")),
		MaxAttempts:   v.GetInt("RATE_LIMIT_MAX_ATTEMPTS"),
		Window:        parseDuration(v.GetString("RATE_LIMIT_WINDOW"), 15*time.Minute),
		SweepInterval: parseDuration(v.GetString("RATE_LIMIT_SWEEP_INTERVAL"), 5*time.Minute),
	}

	cfg.Cleanup = CleanupConfig{
		Enabled:     v.GetBool("CLEANUP_ENABLED"),
		DailyAt:     v.GetString("CLEANUP_DAILY_AT"),
		Timezone:    v.GetString("CLEANUP_TIMEZONE"),
		Retention:   parseDuration(v.GetString("CLEANUP_RETENTION"), 7*24*time.Hour),
		OrphanGrace: parseDuration(v.GetString("CLEANUP_ORPHAN_GRACE"), 24*time.Hour),
		BatchSize:   v.GetInt("CLEANUP_BATCH_SIZE"),
		Workers:     v.GetInt("CLEANUP_WORKERS"),
		Retries:     v.GetInt("CLEANUP_RETRIES"),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminUsername: v.GetString("ADMIN_BOOTSTRAP_USERNAME"),
		AdminPassword: v.GetString("ADMIN_BOOTSTRAP_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_print")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ORDER_CANCEL_WINDOW", "30s")
	v.SetDefault("ORDER_ESTIMATED_TURNAROUND", "30m")
	v.SetDefault("ORDER_UNPAID_TTL", "12h")
	v.SetDefault("ORDER_TRANSITIONS", "")

	v.SetDefault("PRICING_BW_RATE", 1)
	v.SetDefault("PRICING_COLOR_RATE", 2)

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_EXTENSIONS", "pdf,doc,docx,jpg,jpeg,png")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "10m")

	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("SUPABASE_BUCKET", "print-jobs")

	v.SetDefault("RATE_LIMIT_DRIVER", RateLimitMemory)
	v.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL", "5m")

	v.SetDefault("CLEANUP_ENABLED", true)
	v.SetDefault("CLEANUP_DAILY_AT", "02:00")
	v.SetDefault("CLEANUP_TIMEZONE", "Local")
	v.SetDefault("CLEANUP_RETENTION", "168h")
	v.SetDefault("CLEANUP_ORPHAN_GRACE", "24h")
	v.SetDefault("CLEANUP_BATCH_SIZE", 500)
	v.SetDefault("CLEANUP_WORKERS", 1)
	v.SetDefault("CLEANUP_RETRIES", 3)

	v.SetDefault("ADMIN_BOOTSTRAP_USERNAME", "")
	v.SetDefault("ADMIN_BOOTSTRAP_PASSWORD", "")
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
