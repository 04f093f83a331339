package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Provider identifies the text-generation backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM backend
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Pipeline
	PhaseTimeout time.Duration
	LLMRetry     bool
	PhasesFile   string

	// Replay defaults
	ReplayTick     time.Duration
	ReplayCharRate int

	// Server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "dbcoach"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "streaming"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     Provider(getEnv("DBCOACH_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("DBCOACH_LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		PhaseTimeout: parseDuration(getEnv("DBCOACH_PHASE_TIMEOUT", "25s"), 25*time.Second),
		LLMRetry:     getEnv("DBCOACH_LLM_RETRY", "true") == "true",
		PhasesFile:   getEnv("DBCOACH_PHASES_FILE", ""),

		ReplayTick:     parseDuration(getEnv("DBCOACH_REPLAY_TICK", "50ms"), 50*time.Millisecond),
		ReplayCharRate: parseInt(getEnv("DBCOACH_REPLAY_CHAR_RATE", "24"), 24),

		ServerPort: getEnv("DBCOACH_SERVER_PORT", "8090"),

		LogFile:  getEnv("DBCOACH_LOG_FILE", "/tmp/dbcoach.log"),
		LogLevel: parseLogLevel(getEnv("DBCOACH_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseInt(s string, defaultVal int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return defaultVal
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return defaultVal
	}
	return n
}
