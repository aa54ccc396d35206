// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	AI        AIConfig
	Reporting ReportingConfig
	Export    ExportConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host                 string
	Port                 string
	User                 string
	Password             string
	DBName               string
	SSLMode              string
	MaxOpenConns         int
	MaxConcurrentQueries int64
}

// CacheConfig configures the redis-backed analysis cache. When disabled the
// orchestrator falls back to a noop cache.
type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	AnalysisTTLSeconds int
}

type AIConfig struct {
	Enabled              bool
	Strategy             string
	MLEnabled            bool
	OllamaBaseURL        string
	OllamaModel          string
	OllamaTimeoutSeconds int
	Temperature          float64
	TopP                 float64
	NumPredict           int
}

type ReportingConfig struct {
	CacheTTLSeconds   int
	CacheMaxEntries   int
	DefaultMaxRecords int
	LowStockThreshold int
}

type ExportConfig struct {
	Dir            string
	StorageEnabled bool
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type SchedulerConfig struct {
	Enabled bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = FromViper(v)
		ensureDir(instance.Export.Dir)
	})

	return instance
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stockinsight")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_CONCURRENT_QUERIES", 10)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_ANALYSIS_TTL_SECONDS", 300)

	v.SetDefault("AI_ENABLED", true)
	v.SetDefault("AI_STRATEGY", "local")
	v.SetDefault("AI_ML_ENABLED", true)
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "phi3")
	v.SetDefault("OLLAMA_TIMEOUT_SECONDS", 30)
	v.SetDefault("OLLAMA_TEMPERATURE", 0.3)
	v.SetDefault("OLLAMA_TOP_P", 0.9)
	v.SetDefault("OLLAMA_NUM_PREDICT", 1000)

	v.SetDefault("REPORT_CACHE_TTL_SECONDS", 300)
	v.SetDefault("REPORT_CACHE_MAX_ENTRIES", 50)
	v.SetDefault("REPORT_DEFAULT_MAX_RECORDS", 1000)
	v.SetDefault("REPORT_LOW_STOCK_THRESHOLD", 10)

	v.SetDefault("EXPORT_DIR", "./data/exports")
	v.SetDefault("EXPORT_STORAGE_ENABLED", false)

	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "reports")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)

	v.SetDefault("SCHEDULER_ENABLED", true)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:                 v.GetString("DB_HOST"),
			Port:                 v.GetString("DB_PORT"),
			User:                 v.GetString("DB_USER"),
			Password:             v.GetString("DB_PASSWORD"),
			DBName:               v.GetString("DB_NAME"),
			SSLMode:              v.GetString("DB_SSLMODE"),
			MaxOpenConns:         v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxConcurrentQueries: v.GetInt64("DB_MAX_CONCURRENT_QUERIES"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			AnalysisTTLSeconds: v.GetInt("CACHE_ANALYSIS_TTL_SECONDS"),
		},
		AI: AIConfig{
			Enabled:              v.GetBool("AI_ENABLED"),
			Strategy:             v.GetString("AI_STRATEGY"),
			MLEnabled:            v.GetBool("AI_ML_ENABLED"),
			OllamaBaseURL:        v.GetString("OLLAMA_BASE_URL"),
			OllamaModel:          v.GetString("OLLAMA_MODEL"),
			OllamaTimeoutSeconds: v.GetInt("OLLAMA_TIMEOUT_SECONDS"),
			Temperature:          v.GetFloat64("OLLAMA_TEMPERATURE"),
			TopP:                 v.GetFloat64("OLLAMA_TOP_P"),
			NumPredict:           v.GetInt("OLLAMA_NUM_PREDICT"),
		},
		Reporting: ReportingConfig{
			CacheTTLSeconds:   v.GetInt("REPORT_CACHE_TTL_SECONDS"),
			CacheMaxEntries:   v.GetInt("REPORT_CACHE_MAX_ENTRIES"),
			DefaultMaxRecords: v.GetInt("REPORT_DEFAULT_MAX_RECORDS"),
			LowStockThreshold: v.GetInt("REPORT_LOW_STOCK_THRESHOLD"),
		},
		Export: ExportConfig{
			Dir:            v.GetString("EXPORT_DIR"),
			StorageEnabled: v.GetBool("EXPORT_STORAGE_ENABLED"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Scheduler: SchedulerConfig{
			Enabled: v.GetBool("SCHEDULER_ENABLED"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
