package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config represents the application configuration stored in config.json.
type Config struct {
	Version           int                     `json:"version"`
	RetroAchievements RetroAchievementsConfig `json:"retroAchievements"`
}

// RetroAchievementsConfig contains RetroAchievements integration settings.
type RetroAchievementsConfig struct {
	Enabled                 bool   `json:"enabled"`
	Hardcore                bool   `json:"hardcore"`                // Competitive mode; disables save states, rewind, fast forward
	EncoreMode              bool   `json:"encoreMode"`              // Allow re-triggering unlocked achievements
	SpectatorMode           bool   `json:"spectatorMode"`           // Watch achievements without submitting unlocks
	UnlockSound             bool   `json:"unlockSound"`             // Play sound on achievement unlock
	ShowNotification        bool   `json:"showNotification"`        // Show popup notification on achievement unlock
	SuppressHardcoreWarning bool   `json:"suppressHardcoreWarning"` // Hide "Unknown Emulator" hardcore warning
	Username                string `json:"username,omitempty"`
	Token                   string `json:"token,omitempty"` // Auth token (password is never stored)
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		RetroAchievements: RetroAchievementsConfig{
			Enabled:          false,
			Hardcore:         false,
			EncoreMode:       false,
			UnlockSound:      true, // Default ON
			ShowNotification: true, // Default ON
		},
	}
}

// LoadConfig loads the configuration from config.json.
// A missing file yields defaults; fields absent from the JSON keep
// their default values. A corrupted file is an error.
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	jsonBytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Unmarshal over defaults so absent keys stay defaulted.
	config := DefaultConfig()
	if err := json.Unmarshal(jsonBytes, config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to config.json atomically.
func SaveConfig(config *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return AtomicWriteJSON(path, config)
}

// CreateConfigIfMissing creates a default config.json if it doesn't exist.
func CreateConfigIfMissing() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return SaveConfig(DefaultConfig())
	}
	return nil
}

// ClearCredentials removes the stored username and token, used when the
// server reports the token invalid or expired.
func ClearCredentials(config *Config) error {
	config.RetroAchievements.Username = ""
	config.RetroAchievements.Token = ""
	return SaveConfig(config)
}
