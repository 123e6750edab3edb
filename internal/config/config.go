package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Sessions
	SessionSecret string

	// LLM
	ModelName          string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	OpenRouterAPIKey   string
	HistoryTokenBudget int

	// Eval runner
	EvalWorkers        int
	EvalConcurrentReqs int

	// Storage
	StoragePath string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		DatabaseURL:        mustGetEnv("DATABASE_URL"),
		RedisURL:           mustGetEnv("REDIS_URL"),
		SessionSecret:      mustGetEnv("SESSION_SECRET"),
		ModelName:          getEnvOrDefault("MODEL_NAME", "gpt-4o-mini"),
		OpenAIAPIKey:       getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnvOrDefault("OPENAI_BASE_URL", ""),
		GeminiAPIKey:       getEnvOrDefault("GEMINI_API_KEY", ""),
		OpenRouterAPIKey:   getEnvOrDefault("OPENROUTER_API_KEY", ""),
		HistoryTokenBudget: getEnvAsIntOrDefault("HISTORY_TOKEN_BUDGET", 6000),
		EvalWorkers:        getEnvAsIntOrDefault("EVAL_WORKERS", 3),
		EvalConcurrentReqs: getEnvAsIntOrDefault("EVAL_CONCURRENT_REQUESTS", 4),
		StoragePath:        getEnvOrDefault("STORAGE_PATH", "./uploads"),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
