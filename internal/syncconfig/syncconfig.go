// Package syncconfig stores client-side sync settings and device identity in
// JSON files under the user config directory. Environment variables override
// the file values, which override the defaults.
package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL           string `json:"url"`
	MaxQueueSize  *int   `json:"max_queue_size,omitempty"`
	MaxRetryCount *int   `json:"max_retry_count,omitempty"`
	BatchSize     *int   `json:"batch_size,omitempty"`
	Debounce      string `json:"debounce,omitempty"` // duration string, default "3s"
	ProbeInterval string `json:"probe_interval,omitempty"`
	// EncryptQueue enables at-rest encryption of sensitive queue payloads.
	EncryptQueue bool `json:"encrypt_queue,omitempty"`
}

// Config is the global aurasync config stored at ~/.config/aurasync/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/aurasync/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
	// KeySalt is the Argon2id salt for the queue encryption key, hex-encoded.
	KeySalt string `json:"key_salt,omitempty"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/aurasync, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "aurasync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config, returning zero values when absent.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads auth credentials; nil without error when not logged in.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes auth credentials (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file (logout).
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: AURASYNC_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("AURASYNC_URL"); v != "" {
		return v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: AURASYNC_API_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("AURASYNC_API_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetDeviceID returns the device ID from auth.json, generating one if needed.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	return GenerateDeviceID()
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetMaxQueueSize returns the mutation queue capacity.
// Priority: AURASYNC_MAX_QUEUE_SIZE env > config.json > default (100).
func GetMaxQueueSize() int {
	return intSetting("AURASYNC_MAX_QUEUE_SIZE", func(c *Config) *int { return c.Sync.MaxQueueSize }, 100)
}

// GetMaxRetryCount returns the per-operation retry budget.
// Priority: AURASYNC_MAX_RETRY_COUNT env > config.json > default (3).
func GetMaxRetryCount() int {
	return intSetting("AURASYNC_MAX_RETRY_COUNT", func(c *Config) *int { return c.Sync.MaxRetryCount }, 3)
}

// GetBatchSize returns the push chunk size.
// Priority: AURASYNC_BATCH_SIZE env > config.json > default (50).
func GetBatchSize() int {
	return intSetting("AURASYNC_BATCH_SIZE", func(c *Config) *int { return c.Sync.BatchSize }, 50)
}

func intSetting(envKey string, pick func(*Config) *int, def int) int {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := LoadConfig()
	if err == nil {
		if p := pick(cfg); p != nil && *p > 0 {
			return *p
		}
	}
	return def
}

// GetDebounce returns the reconnect settle time, default 3s.
func GetDebounce() time.Duration {
	return durationSetting(func(c *Config) string { return c.Sync.Debounce }, 3*time.Second)
}

// GetProbeInterval returns the connectivity probe interval, default 30s.
func GetProbeInterval() time.Duration {
	return durationSetting(func(c *Config) string { return c.Sync.ProbeInterval }, 30*time.Second)
}

func durationSetting(pick func(*Config) string, def time.Duration) time.Duration {
	cfg, err := LoadConfig()
	if err != nil {
		return def
	}
	if raw := pick(cfg); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return def
}
