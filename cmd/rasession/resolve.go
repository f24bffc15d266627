package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user-none/rasession/gamedb"
	"github.com/user-none/rasession/raweb"
	"github.com/user-none/rasession/romfile"
	"github.com/user-none/rasession/storage"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <rom>",
	Short: "Resolve a ROM file to its RetroAchievements game",
	Long:  "Hashes the ROM (extracting it from an archive if needed), resolves the hash to a game ID through the local cache or the server, and prints the achievement set when logged in.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, config, err := setup()
		if err != nil {
			return err
		}

		identity, err := romfile.Identify(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("File:    %s\n", identity.Name)
		fmt.Printf("Hash:    %s\n", identity.Hash)
		fmt.Printf("Console: %d\n", identity.ConsoleID)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		gameID, cached, err := lookupGameID(ctx, cfg, identity)
		if err != nil {
			return err
		}

		if gameID == 0 {
			fmt.Println("Game:    not recognized")
			return nil
		}
		source := "server"
		if cached {
			source = "cache"
		}
		fmt.Printf("Game:    %d (%s)\n", gameID, source)

		ra := config.RetroAchievements
		if ra.Username == "" || ra.Token == "" {
			return nil
		}

		client := newWebClient(cfg)
		patch, err := client.FetchPatch(ctx, ra.Username, ra.Token, gameID)
		if err != nil {
			return err
		}

		var count int
		var points uint32
		for _, ach := range patch.Achievements {
			if ach.Flags != raweb.AchievementFlagsCore || ach.Points == 0 {
				continue
			}
			count++
			points += ach.Points
		}
		fmt.Printf("Title:   %s\n", patch.Title)
		fmt.Printf("Set:     %d achievements, %d points\n", count, points)
		return nil
	},
}

// lookupGameID consults the local cache before the server and stores
// fresh server answers.
func lookupGameID(ctx context.Context, cfg envConfig, identity *romfile.Identity) (uint32, bool, error) {
	dbPath, err := storage.GetDatabasePath()
	if err != nil {
		return 0, false, err
	}
	store, err := gamedb.Open(dbPath)
	if err != nil {
		return 0, false, err
	}
	defer store.Close()

	if gameID, ok, err := store.LookupHash(ctx, identity.Hash); err == nil && ok {
		return gameID, true, nil
	}

	client := newWebClient(cfg)
	gameID, err := client.ResolveGameID(ctx, identity.Hash)
	if err != nil {
		return 0, false, err
	}

	if err := store.SaveResolution(ctx, identity.Hash, gameID, identity.ConsoleID); err != nil {
		fmt.Printf("Warning: cache save failed: %v\n", err)
	}
	return gameID, false, nil
}
