// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Google   GoogleConfig
	Facebook FacebookConfig
	AI       AIConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string // external URL, used to build OAuth redirect URIs
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string
}

// GoogleConfig holds the Google OAuth app credentials.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// FacebookConfig holds the Facebook app credentials.
type FacebookConfig struct {
	AppID     string
	AppSecret string
}

// AIConfig holds the global AI defaults and the backend catalog location.
type AIConfig struct {
	DefaultProvider string
	DefaultModel    string
	CatalogPath     string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	Env   string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "8090"),
			BaseURL:         getEnv("BASE_URL", "http://localhost:8090"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "reviewhub.db"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Facebook: FacebookConfig{
			AppID:     os.Getenv("FACEBOOK_APP_ID"),
			AppSecret: os.Getenv("FACEBOOK_APP_SECRET"),
		},
		AI: AIConfig{
			DefaultProvider: getEnv("AI_DEFAULT_PROVIDER", "openai"),
			DefaultModel:    os.Getenv("AI_DEFAULT_MODEL"),
			CatalogPath:     getEnv("AI_CATALOG_PATH", "backends.yaml"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "development"),
		},
	}, nil
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
