package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is read once from the environment at start-up.
type Config struct {
	DatabaseURL string
	RedisURL    string

	DiscordBotToken string

	JWTSecret         string
	APIPort           string
	CORSAllowedOrigin string
	SubmitRatePerMin  int

	OpenPassInterval  time.Duration
	ClosePassInterval time.Duration
	PassLockTTL       time.Duration

	SummarizerURL     string
	SummarizerToken   string
	SummarizerTimeout time.Duration
	LinkageTimeout    time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DB_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DB_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.APIPort = getEnvString("API_PORT", "8080")
	cfg.CORSAllowedOrigin = os.Getenv("CORS_ALLOWED_ORIGIN")
	cfg.SubmitRatePerMin = getEnvInt("SUBMIT_RATE_PER_MIN", 30)
	cfg.OpenPassInterval = getEnvDuration("OPEN_PASS_INTERVAL", time.Minute)
	cfg.ClosePassInterval = getEnvDuration("CLOSE_PASS_INTERVAL", time.Minute)
	cfg.PassLockTTL = getEnvDuration("PASS_LOCK_TTL", 5*time.Minute)
	cfg.SummarizerURL = os.Getenv("SUMMARIZER_URL")
	cfg.SummarizerToken = os.Getenv("SUMMARIZER_TOKEN")
	cfg.SummarizerTimeout = getEnvDuration("SUMMARIZER_TIMEOUT", 15*time.Second)
	cfg.LinkageTimeout = getEnvDuration("LINKAGE_TIMEOUT", 5*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.OpenPassInterval <= 0 || cfg.ClosePassInterval <= 0 {
		return nil, fmt.Errorf("pass intervals must be positive")
	}

	return cfg, nil
}

// RequireAPI reports the settings the HTTP API cannot start without.
func (c *Config) RequireAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("required environment variables are not set: [JWT_SECRET]")
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
