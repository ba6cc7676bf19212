package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

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

	// JWT
	JWTSecret string

	// Study
	StudyLocation         *time.Location
	SettingsCacheTTL      time.Duration
	ReviewRateLimitPerMin int

	// Frontend
	FrontendURL string
}

// Load reads configuration from the environment after applying envFiles.
// With no files given, a .env in the working directory is used if present.
func Load(envFiles ...string) *Config {
	godotenv.Load(envFiles...)

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		StudyLocation:         mustLoadLocation(getEnvOrDefault("STUDY_TIMEZONE", "UTC")),
		SettingsCacheTTL:      time.Duration(getEnvAsIntOrDefault("SETTINGS_CACHE_TTL_SECONDS", 600)) * time.Second,
		ReviewRateLimitPerMin: getEnvAsIntOrDefault("REVIEW_RATE_LIMIT_PER_MINUTE", 120),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
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

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("invalid STUDY_TIMEZONE %q: %v", name, err))
	}
	return loc
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
