package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Log         LogConfig         `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ConfigFile string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | postgres
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	Charset      string
	ParseTime    bool `mapstructure:"parse_time"`
	MaxOpenConns int  `mapstructure:"max_open_conns"`
	MaxIdleConns int  `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	Host            string
	Port            int
	Password        string
	DB              int
	PaperTTLSeconds int `mapstructure:"paper_ttl_seconds"`
}

// EmbeddingConfig 向量服务配置，超时按批量大小线性放大并设置上限
type EmbeddingConfig struct {
	Provider           string `mapstructure:"provider"` // openai | gemini
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	BaseTimeoutSeconds int    `mapstructure:"base_timeout_seconds"`
	PerTextSeconds     int    `mapstructure:"per_text_seconds"`
	MaxTimeoutSeconds  int    `mapstructure:"max_timeout_seconds"`
}

// ScoringConfig 主观题评分阈值与降级评分阈值
type ScoringConfig struct {
	Excellent          float64 `mapstructure:"excellent"`
	Partial            float64 `mapstructure:"partial"`
	Attempted          float64 `mapstructure:"attempted"`
	PartialRatio       float64 `mapstructure:"partial_ratio"`
	AttemptedRatio     float64 `mapstructure:"attempted_ratio"`
	FallbackHigh       float64 `mapstructure:"fallback_high"`
	FallbackLow        float64 `mapstructure:"fallback_low"`
	FallbackHighRatio  float64 `mapstructure:"fallback_high_ratio"`
	FallbackLowRatio   float64 `mapstructure:"fallback_low_ratio"`
	FallbackFloorRatio float64 `mapstructure:"fallback_floor_ratio"`
}

type PersistenceConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMS int `mapstructure:"base_delay_ms"`
}

func (p PersistenceConfig) BaseDelay() time.Duration {
	return time.Duration(p.BaseDelayMS) * time.Millisecond
}

type ArchiveConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig EvaluateMaxRequests 单独限制评测接口，评测会调用向量服务
type RateLimitConfig struct {
	MaxRequests         int `mapstructure:"max_requests"`
	EvaluateMaxRequests int `mapstructure:"evaluate_max_requests"`
	WindowMinutes       int `mapstructure:"window_minutes"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// LogConfig Level 为空时按 server.mode 决定，debug 模式输出 debug 日志
type LogConfig struct {
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.dbname", "edtech_eval")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.paper_ttl_seconds", 600)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_timeout_seconds", 20)
	v.SetDefault("embedding.per_text_seconds", 2)
	v.SetDefault("embedding.max_timeout_seconds", 50)

	v.SetDefault("scoring.excellent", 0.85)
	v.SetDefault("scoring.partial", 0.70)
	v.SetDefault("scoring.attempted", 0.55)
	v.SetDefault("scoring.partial_ratio", 0.6)
	v.SetDefault("scoring.attempted_ratio", 0.3)
	v.SetDefault("scoring.fallback_high", 0.6)
	v.SetDefault("scoring.fallback_low", 0.3)
	v.SetDefault("scoring.fallback_high_ratio", 0.7)
	v.SetDefault("scoring.fallback_low_ratio", 0.4)
	v.SetDefault("scoring.fallback_floor_ratio", 0.1)

	v.SetDefault("persistence.max_attempts", 3)
	v.SetDefault("persistence.base_delay_ms", 1000)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.type", "local")
	v.SetDefault("archive.local_path", "archive")

	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.evaluate_max_requests", 120)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("log.path", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EDU_EVAL")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Embedding
	v.BindEnv("embedding.provider", "EMBEDDING_PROVIDER")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("embedding.model", "EMBEDDING_MODEL")

	// Archive / OSS / MinIO
	v.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	v.BindEnv("archive.type", "ARCHIVE_TYPE")
	v.BindEnv("archive.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("archive.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("archive.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("archive.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("archive.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("archive.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("archive.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("archive.oss_bucket", "OSS_BUCKET")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// 配置文件缺失时仅使用默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Archive.Enabled && cfg.Archive.Type == "local" {
		if _, err := os.Stat(cfg.Archive.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Archive.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 校验评分阈值顺序和持久化重试参数
func (c *Config) Validate() error {
	s := c.Scoring
	if !(s.Excellent > s.Partial && s.Partial > s.Attempted) {
		return fmt.Errorf("scoring thresholds must be strictly descending, got excellent=%.2f partial=%.2f attempted=%.2f",
			s.Excellent, s.Partial, s.Attempted)
	}
	if !(s.FallbackHigh > s.FallbackLow) {
		return fmt.Errorf("fallback thresholds must be descending, got high=%.2f low=%.2f", s.FallbackHigh, s.FallbackLow)
	}
	if c.Persistence.MaxAttempts < 1 {
		return fmt.Errorf("persistence.max_attempts must be at least 1, got %d", c.Persistence.MaxAttempts)
	}
	switch c.Embedding.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider)
	}
	return nil
}
