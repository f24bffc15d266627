package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user-none/rasession/gamedb"
	"github.com/user-none/rasession/romfile"
	"github.com/user-none/rasession/storage"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the hash library for every supported console",
	Long:  "Fetches the full ROM hash to game ID mapping for each supported console and replaces the local cache, preserving entries resolved individually.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		dbPath, err := storage.GetDatabasePath()
		if err != nil {
			return err
		}
		store, err := gamedb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		client := newWebClient(cfg)
		ctx := cmd.Context()

		var total int
		for _, consoleID := range romfile.Consoles() {
			fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			library, err := client.FetchHashLibrary(fetchCtx, consoleID)
			cancel()
			if err != nil {
				return fmt.Errorf("console %d: %w", consoleID, err)
			}

			if err := store.ReplaceHashLibrary(ctx, consoleID, library); err != nil {
				return fmt.Errorf("console %d: %w", consoleID, err)
			}

			fmt.Printf("Console %-2d: %d hashes\n", consoleID, len(library))
			total += len(library)
		}

		fmt.Printf("Synced %d hashes across %d consoles\n", total, len(romfile.Consoles()))
		return nil
	},
}
