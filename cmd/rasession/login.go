package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user-none/rasession/storage"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in to RetroAchievements and store the connect token",
	Long:  "Authenticates with username and password, then stores the returned connect token in config.json. The password itself is never stored.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, config, err := setup()
		if err != nil {
			return err
		}

		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client := newWebClient(cfg)
		result, err := client.Login(ctx, args[0], password)
		if err != nil {
			return err
		}

		config.RetroAchievements.Enabled = true
		config.RetroAchievements.Username = result.Username
		config.RetroAchievements.Token = result.Token
		if err := storage.SaveConfig(config); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Printf("Logged in as %s (%d points, %d softcore)\n",
			result.Username, result.Score, result.SoftcoreScore)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("password", "", "Password (prompted when omitted)")
}
