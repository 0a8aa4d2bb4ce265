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

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	// SeedFile is an optional YAML fixture loaded at startup.
	SeedFile string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Store     StoreConfig
	Manifest  ManifestConfig
	History   HistoryConfig
	Board     BoardConfig
	Reconcile ReconcileConfig
	Periods   PeriodsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the shared data store backend.
type StoreConfig struct {
	Backend    string
	KeyPrefix  string
	MaxRetries int
}

// ManifestConfig holds the defaults seeded into the runtime settings record.
type ManifestConfig struct {
	MinutesBetweenLoads  int
	InstructorCycleTime  int
	DefaultPlaneCapacity int
}

// HistoryConfig bounds the undo/redo history.
type HistoryConfig struct {
	Limit int
}

// BoardConfig tunes the countdown board publisher.
type BoardConfig struct {
	TickInterval time.Duration
}

// ReconcileConfig sizes the reconciliation worker pool.
type ReconcileConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// PeriodsConfig toggles the Postgres archive for closed periods and locates
// archived statements.
type PeriodsConfig struct {
	ArchiveEnabled  bool
	StatementDir    string
	StatementSecret string
	StatementTTL    time.Duration
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
	cfg.SeedFile = v.GetString("SEED_FILE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{
		Backend:    strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		KeyPrefix:  v.GetString("STORE_KEY_PREFIX"),
		MaxRetries: v.GetInt("STORE_MAX_RETRIES"),
	}

	cfg.Manifest = ManifestConfig{
		MinutesBetweenLoads:  v.GetInt("MINUTES_BETWEEN_LOADS"),
		InstructorCycleTime:  v.GetInt("INSTRUCTOR_CYCLE_TIME"),
		DefaultPlaneCapacity: v.GetInt("DEFAULT_PLANE_CAPACITY"),
	}

	cfg.History = HistoryConfig{Limit: v.GetInt("HISTORY_LIMIT")}

	cfg.Board = BoardConfig{
		TickInterval: parseDuration(v.GetString("BOARD_TICK_INTERVAL"), time.Second),
	}

	cfg.Reconcile = ReconcileConfig{
		Workers:    v.GetInt("RECONCILE_WORKERS"),
		Retries:    v.GetInt("RECONCILE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECONCILE_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Periods = PeriodsConfig{
		ArchiveEnabled:  v.GetBool("ENABLE_PERIOD_ARCHIVE"),
		StatementDir:    v.GetString("STATEMENT_DIR"),
		StatementSecret: v.GetString("STATEMENT_SIGNING_SECRET"),
		StatementTTL:    parseDuration(v.GetString("STATEMENT_LINK_TTL"), 15*time.Minute),
	}
	if cfg.Periods.StatementSecret == "" {
		cfg.Periods.StatementSecret = cfg.JWT.Secret
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
	v.SetDefault("DB_NAME", "dz_manifest")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "dz-manifest")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("STORE_KEY_PREFIX", "manifest")
	v.SetDefault("STORE_MAX_RETRIES", 5)

	v.SetDefault("MINUTES_BETWEEN_LOADS", 20)
	v.SetDefault("INSTRUCTOR_CYCLE_TIME", 40)
	v.SetDefault("DEFAULT_PLANE_CAPACITY", 18)

	v.SetDefault("HISTORY_LIMIT", 200)
	v.SetDefault("BOARD_TICK_INTERVAL", "1s")

	v.SetDefault("RECONCILE_WORKERS", 1)
	v.SetDefault("RECONCILE_RETRIES", 3)
	v.SetDefault("RECONCILE_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_PERIOD_ARCHIVE", false)
	v.SetDefault("STATEMENT_DIR", "./statements")
	v.SetDefault("STATEMENT_LINK_TTL", "15m")
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
