package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the support chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	ChatModel       string
	ChatTemperature float64
	ChatMaxTokens   int
	ChatMaxHistory  int

	CustomerNumbersFile  string
	CustomerWorkbookFile string

	GoogleSheetID         string
	GoogleCredentialsFile string

	DatabaseURL string

	AssetsDir      string
	MaxUploadBytes int64
}

// Load reads environment variables and applies safe defaults. A
// missing or malformed OPENAI_API_KEY is NOT an error here: the web
// mode degrades to unavailable instead of refusing to start.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "supportbot"),
		AllowAnyOrigin:        false,
		OpenAIAPIKey:          stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:         envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:             envOrDefault("CHATBOT_MODEL", "gpt-4o-mini"),
		ChatTemperature:       0.7,
		ChatMaxTokens:         500,
		ChatMaxHistory:        10,
		CustomerNumbersFile:   envOrDefault("CUSTOMER_NUMBERS_FILE", "customer_numbers.json"),
		CustomerWorkbookFile:  envOrDefault("CUSTOMER_XLSX_FILE", "customers_data.xlsx"),
		GoogleSheetID:         stringsTrimSpace("GOOGLE_SHEET_ID"),
		GoogleCredentialsFile: envOrDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		AssetsDir:             envOrDefault("ASSETS_DIR", "assets"),
		MaxUploadBytes:        5 << 20,
		OpenAITimeout:         60 * time.Second,
		ShutdownTimeout:       15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenAITimeout, err = durationFromEnv("OPENAI_TIMEOUT", cfg.OpenAITimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTemperature, err = floatFromEnv("CHATBOT_TEMPERATURE", cfg.ChatTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatMaxTokens, err = intFromEnv("CHATBOT_MAX_TOKENS", cfg.ChatMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatMaxHistory, err = intFromEnv("CHATBOT_MAX_HISTORY", cfg.ChatMaxHistory)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes, err = int64FromEnv("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	if err != nil {
		return Config{}, err
	}

	if cfg.ChatTemperature < 0 || cfg.ChatTemperature > 2 {
		return Config{}, fmt.Errorf("CHATBOT_TEMPERATURE must be between 0 and 2")
	}
	if cfg.ChatMaxTokens <= 0 {
		return Config{}, fmt.Errorf("CHATBOT_MAX_TOKENS must be positive")
	}
	if cfg.ChatMaxHistory <= 0 {
		return Config{}, fmt.Errorf("CHATBOT_MAX_HISTORY must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.OpenAITimeout < time.Second {
		return Config{}, fmt.Errorf("OPENAI_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
