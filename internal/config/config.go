// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level settings. Notification credentials may also be
// changed at runtime through the settings table, which takes precedence.
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	Orders    OrdersConfig
	Notify    NotifyConfig
}

// ServerConfig holds process and storage settings.
type ServerConfig struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string
}

// RateLimitConfig configures admission control for order intake.
type RateLimitConfig struct {
	Window   time.Duration
	Budget   int
	RedisURL string
}

// OrdersConfig bounds order intake.
type OrdersConfig struct {
	MaxLines int
}

// NotifyConfig holds static bot credentials, used when settings have none.
type NotifyConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
	Timeout  time.Duration
}

// Load reads files (default ".env") into the environment when present and
// builds a Config from it. Missing files are not an error.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)

	return &Config{
		Server: ServerConfig{
			DBPath:    getEnv("TRGOVINA_DB", "trgovina.sqlite3"),
			Addr:      getEnv("TRGOVINA_ADDR", ":8080"),
			AdminUser: getEnv("TRGOVINA_ADMIN", "Admin"),
			LogPath:   getEnv("TRGOVINA_LOG", ""),
		},
		RateLimit: RateLimitConfig{
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			Budget:   getEnvInt("RATE_LIMIT_BUDGET", 3),
			RedisURL: getEnv("RATE_LIMIT_REDIS_URL", ""),
		},
		Orders: OrdersConfig{
			MaxLines: getEnvInt("MAX_CART_LINES", 50),
		},
		Notify: NotifyConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			APIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			Timeout:  getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return fallback
}
