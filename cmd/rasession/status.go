package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user-none/rasession/gamedb"
	"github.com/user-none/rasession/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, login, and cache state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, config, err := setup()
		if err != nil {
			return err
		}

		configPath, err := storage.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Printf("Config:  %s\n", configPath)
		fmt.Printf("Enabled: %t\n", config.RetroAchievements.Enabled)

		ra := config.RetroAchievements
		switch {
		case ra.Username == "" || ra.Token == "":
			fmt.Println("Login:   not logged in")
		default:
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			client := newWebClient(cfg)
			result, err := client.LoginWithToken(ctx, ra.Username, ra.Token)
			if err != nil {
				fmt.Printf("Login:   %s (token check failed: %v)\n", ra.Username, err)
			} else {
				fmt.Printf("Login:   %s (%d points, %d softcore)\n",
					result.Username, result.Score, result.SoftcoreScore)
			}
		}

		mode := "Softcore"
		if ra.Hardcore {
			mode = "Hardcore"
		}
		fmt.Printf("Mode:    %s\n", mode)

		dbPath, err := storage.GetDatabasePath()
		if err != nil {
			return err
		}
		store, err := gamedb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		count, err := store.CountHashes(cmd.Context(), 0)
		if err != nil {
			return err
		}
		fmt.Printf("Cache:   %d hashes (%s)\n", count, dbPath)
		return nil
	},
}
