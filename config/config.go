package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StoreConfig selects the key-value backend for profiles and domain mappings.
type StoreConfig struct {
	Driver     string // memory, sqlite or postgres
	SQLitePath string
	// MemoryQuota bounds the memory driver in bytes; zero means unbounded.
	MemoryQuota int
}

// TaskConfig tunes one kind of oracle request.
type TaskConfig struct {
	Enabled     bool
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Threshold   float64
}

type OracleConfig struct {
	Provider          string
	AzureEndpoint     string
	AzureAPIKey       string
	HuggingFaceKey    string
	HuggingFaceModel  string
	HuggingFaceURL    string
	GeminiAPIKey      string
	GeminiModel       string
	RequestsPerSecond float64
	CacheTTL          time.Duration
	Classification    TaskConfig
	AnswerMatching    TaskConfig
}

type FillConfig struct {
	Timeout          time.Duration
	HighlightClass   string
	ChallengeMarkers []string
}

type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
}

type LogConfig struct {
	Level string
	File  string
}

type AppConfig struct {
	Port        string
	Environment string
	JWTSecret   string
	// OperatorSecretHash is the bcrypt hash of the secret exchanged for API tokens.
	OperatorSecretHash string
	AllowedOrigins     []string
	Store              StoreConfig
	Database           DatabaseConfig
	Oracle             OracleConfig
	Fill               FillConfig
	S3                 S3Config
	Log                LogConfig
}

var v = newViper()

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8081")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("JWT_SECRET", "your-secret-key")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "autofill.db")
	v.SetDefault("MEMORY_QUOTA", 5*1024*1024)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("HUGGINGFACE_MODEL", "mistralai/Mistral-7B-Instruct-v0.2")
	v.SetDefault("HUGGINGFACE_ENDPOINT", "https://api-inference.huggingface.co/models/")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("AI_REQUESTS_PER_SECOND", 2.0)
	v.SetDefault("AI_CACHE_TTL", 15*time.Minute)
	v.SetDefault("AI_CLASSIFICATION_ENABLED", true)
	v.SetDefault("AI_CLASSIFICATION_TEMPERATURE", 0.3)
	v.SetDefault("AI_CLASSIFICATION_MAX_TOKENS", 300)
	v.SetDefault("AI_CLASSIFICATION_TIMEOUT", 10*time.Second)
	v.SetDefault("AI_ANSWER_ENABLED", true)
	v.SetDefault("AI_ANSWER_TEMPERATURE", 0.2)
	v.SetDefault("AI_ANSWER_MAX_TOKENS", 150)
	v.SetDefault("AI_ANSWER_TIMEOUT", 8*time.Second)
	v.SetDefault("AI_ANSWER_THRESHOLD", 0.6)
	v.SetDefault("FILL_TIMEOUT", 5*time.Second)
	v.SetDefault("FILL_HIGHLIGHT_CLASS", "form-autofill-filled")
	v.SetDefault("FILL_CHALLENGE_MARKERS", "captcha,cf-turnstile,cf-challenge")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "profiles/")
	v.SetDefault("LOG_LEVEL", "info")
	return v
}

// Load reads a .env file into the environment when one exists. An explicit
// path that cannot be read is an error; a missing default .env is not.
func Load(envFile string) error {
	if envFile == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     v.GetInt("DB_PORT"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func GetAppConfig() AppConfig {
	return AppConfig{
		Port:               getEnv("PORT", "8081"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		OperatorSecretHash: getEnv("OPERATOR_SECRET_HASH", ""),
		AllowedOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			SQLitePath:  getEnv("SQLITE_PATH", "autofill.db"),
			MemoryQuota: v.GetInt("MEMORY_QUOTA"),
		},
		Database: GetDatabaseConfig(),
		Oracle:   GetOracleConfig(),
		Fill: FillConfig{
			Timeout:          v.GetDuration("FILL_TIMEOUT"),
			HighlightClass:   getEnv("FILL_HIGHLIGHT_CLASS", "form-autofill-filled"),
			ChallengeMarkers: splitList(getEnv("FILL_CHALLENGE_MARKERS", "")),
		},
		S3: S3Config{
			AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Bucket:    getEnv("S3_BUCKET", ""),
			Prefix:    getEnv("S3_PREFIX", "profiles/"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

func GetOracleConfig() OracleConfig {
	cfg := OracleConfig{
		AzureEndpoint:     getEnv("AZURE_ENDPOINT", ""),
		AzureAPIKey:       getEnv("AZURE_API_KEY", ""),
		HuggingFaceKey:    getEnv("HUGGINGFACE_API_KEY", ""),
		HuggingFaceModel:  getEnv("HUGGINGFACE_MODEL", ""),
		HuggingFaceURL:    getEnv("HUGGINGFACE_ENDPOINT", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", ""),
		RequestsPerSecond: v.GetFloat64("AI_REQUESTS_PER_SECOND"),
		CacheTTL:          v.GetDuration("AI_CACHE_TTL"),
		Classification: TaskConfig{
			Enabled:     v.GetBool("AI_CLASSIFICATION_ENABLED"),
			Temperature: v.GetFloat64("AI_CLASSIFICATION_TEMPERATURE"),
			MaxTokens:   v.GetInt("AI_CLASSIFICATION_MAX_TOKENS"),
			Timeout:     v.GetDuration("AI_CLASSIFICATION_TIMEOUT"),
		},
		AnswerMatching: TaskConfig{
			Enabled:     v.GetBool("AI_ANSWER_ENABLED"),
			Temperature: v.GetFloat64("AI_ANSWER_TEMPERATURE"),
			MaxTokens:   v.GetInt("AI_ANSWER_MAX_TOKENS"),
			Timeout:     v.GetDuration("AI_ANSWER_TIMEOUT"),
			Threshold:   v.GetFloat64("AI_ANSWER_THRESHOLD"),
		},
	}
	cfg.Provider = DetectProvider(getEnv("AI_PROVIDER", ""), cfg)
	return cfg
}

// DetectProvider honours an explicit choice, otherwise picks the first
// provider that has a key configured: azure, then huggingface, then gemini.
func DetectProvider(explicit string, cfg OracleConfig) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch {
	case cfg.AzureAPIKey != "" && cfg.AzureEndpoint != "":
		return "azure"
	case cfg.HuggingFaceKey != "":
		return "huggingface"
	case cfg.GeminiAPIKey != "":
		return "gemini"
	}
	return "none"
}

func getEnv(key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
