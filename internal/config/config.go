// Package config provides configuration for the assistant service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the assistant service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Planner settings
	PlanTTL      time.Duration // pending plans older than this are swept
	StepTimeout  time.Duration // per-step execution timeout
	HistoryLimit int           // chat turns handed to the LLM fallback

	// LLM endpoint
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Development helpers
	SeedDemo bool

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:     getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:  getEnv("DATABASE_URL", "file:assistant.db?cache=shared&mode=rwc"),
		PlanTTL:      time.Duration(getEnvInt("PLAN_TTL_MS", 1800000)) * time.Millisecond,
		StepTimeout:  time.Duration(getEnvInt("STEP_TIMEOUT_MS", 60000)) * time.Millisecond,
		HistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 20),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:   time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		SeedDemo:     getEnv("SEED_DEMO", "") == "1",
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
