package api

import "os"

// Config holds server settings, loaded from the environment.
type Config struct {
	ListenAddr string
	DBPath     string
	// APIKey is the static bearer token clients must present. Empty
	// disables auth (local development only).
	APIKey    string
	LogLevel  string
	LogFormat string
}

// LoadConfig reads server configuration from environment variables with
// sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr: ":8080",
		DBPath:     "aurasync-server.db",
		LogLevel:   "info",
		LogFormat:  "json",
	}
	if v := os.Getenv("AURASYNC_SERVER_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("AURASYNC_SERVER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AURASYNC_SERVER_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("AURASYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AURASYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	return cfg
}
