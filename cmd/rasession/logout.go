package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user-none/rasession/storage"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored RetroAchievements credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, config, err := setup()
		if err != nil {
			return err
		}

		if config.RetroAchievements.Username == "" {
			fmt.Println("Not logged in")
			return nil
		}

		username := config.RetroAchievements.Username
		if err := storage.ClearCredentials(config); err != nil {
			return err
		}
		fmt.Printf("Logged out %s\n", username)
		return nil
	},
}
