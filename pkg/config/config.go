package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		Env             string
		ShutdownTimeout time.Duration
		GRPCHealthPort  string
	}

	// Credential store configuration
	Database struct {
		Driver     string // postgres or sqlite
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SSLMode    string
		SQLitePath string
		MaxConns   int
		Timeout    time.Duration
	}

	// External model providers. Empty keys put the pipeline in degraded mode.
	Providers struct {
		OpenAIKey         string
		OpenAIBaseURL     string
		ChatModel         string
		TranscribeModel   string
		ElevenLabsKey     string
		ElevenLabsBaseURL string
		VoiceID           string
		TTSModel          string
		Timeout           time.Duration
	}

	// Command-line converters used by the pipeline
	Tools struct {
		FFmpegPath  string
		RhubarbPath string
		Timeout     time.Duration
	}

	Pipeline struct {
		ScratchDir        string
		AssetsDir         string
		MaxConcurrentRuns int
	}

	// Security configuration
	Security struct {
		RateLimit         float64
		RateLimitBurst    int
		AllowedOrigins    []string
		MaxUploadSize     int64
		MinPasswordLength int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings
	Cache struct {
		RedisURL      string
		RedisPassword string
		VoicesTTL     time.Duration
	}

	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
	}

	Observability struct {
		TracingEnabled    bool
		MetricsEnabled    bool
		OpenAPIValidation bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process-wide Config, loading it from the environment on first use
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a fresh Config from the current environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "28000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.GRPCHealthPort = getEnvString("GRPC_HEALTH_PORT", "")

	cfg.Database.Driver = getEnvString("DB_DRIVER", "sqlite")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "avatar")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.SQLitePath = getEnvString("SQLITE_PATH", "avatar.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	cfg.Providers.OpenAIKey = getEnvString("OPENAI_API_KEY", "")
	cfg.Providers.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.Providers.ChatModel = getEnvString("CHAT_MODEL", "gpt-3.5-turbo-1106")
	cfg.Providers.TranscribeModel = getEnvString("TRANSCRIBE_MODEL", "gpt-4o-mini-transcribe")
	cfg.Providers.ElevenLabsKey = getEnvString("ELEVEN_LABS_API_KEY", "")
	cfg.Providers.ElevenLabsBaseURL = getEnvString("ELEVEN_LABS_BASE_URL", "https://api.elevenlabs.io/v1")
	cfg.Providers.VoiceID = getEnvString("ELEVEN_LABS_VOICE_ID", "EXAVITQu4vr4xnSDxMaL")
	cfg.Providers.TTSModel = getEnvString("TTS_MODEL", "eleven_multilingual_v2")
	cfg.Providers.Timeout = getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second)

	cfg.Tools.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.Tools.RhubarbPath = getEnvString("RHUBARB_PATH", "./bin/rhubarb")
	cfg.Tools.Timeout = getEnvDuration("TOOL_TIMEOUT", 30*time.Second)

	cfg.Pipeline.ScratchDir = getEnvString("SCRATCH_DIR", os.TempDir())
	cfg.Pipeline.AssetsDir = getEnvString("ASSETS_DIR", "audios")
	cfg.Pipeline.MaxConcurrentRuns = getEnvInt("PIPELINE_MAX_CONCURRENT_RUNS", 4)

	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 25<<20) // 25MB
	cfg.Security.MinPasswordLength = getEnvInt("MIN_PASSWORD_LENGTH", 4)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Cache.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Cache.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.Cache.VoicesTTL = getEnvDuration("VOICES_CACHE_TTL", 10*time.Minute)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "secret/data/avatar")

	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.Observability.OpenAPIValidation = getEnvBool("OPENAPI_VALIDATION", true)

	return cfg
}

// ProvidersConfigured reports whether both the language-model and speech-synthesis
// credentials are present.
func (c *Config) ProvidersConfigured() bool {
	return c.Providers.OpenAIKey != "" && c.Providers.ElevenLabsKey != ""
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
