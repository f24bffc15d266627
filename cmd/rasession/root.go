package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/user-none/rasession/raweb"
	"github.com/user-none/rasession/storage"
)

const appName = "rasession"

// envConfig holds environment overrides for the CLI.
type envConfig struct {
	DataDir  string `env:"RASESSION_DATA_DIR"`
	BaseURL  string `env:"RASESSION_BASE_URL"`
	Username string `env:"RASESSION_USERNAME"`
	Token    string `env:"RASESSION_TOKEN"`
}

var rootCmd = &cobra.Command{
	Use:   "rasession",
	Short: "RetroAchievements session tools",
	Long:  "rasession resolves ROMs against RetroAchievements, manages login credentials, and maintains the local game identity cache.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup parses environment overrides and prepares storage and config.
func setup() (envConfig, *storage.Config, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, nil, fmt.Errorf("parse environment: %w", err)
	}

	storage.Init(appName)
	if cfg.DataDir != "" {
		storage.SetBaseDirOverride(cfg.DataDir)
	}
	if err := storage.EnsureDirectories(); err != nil {
		return cfg, nil, err
	}

	config, err := storage.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}

	// Environment credentials win over stored ones.
	if cfg.Username != "" {
		config.RetroAchievements.Username = cfg.Username
	}
	if cfg.Token != "" {
		config.RetroAchievements.Token = cfg.Token
	}

	return cfg, config, nil
}

// newWebClient builds the API client, honoring a base URL override.
func newWebClient(cfg envConfig) *raweb.Client {
	client := raweb.NewClient(appName, version)
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	return client
}
