package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/crucial707/coach-scheduler/cmd/cli/apiclient"
	"github.com/crucial707/coach-scheduler/cmd/cli/config"
	"github.com/spf13/cobra"
)

// InitAuth registers login and logout on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

// loginCmd checks a coach token against the API and stores it locally.
// Tokens are issued by the coaching platform; this CLI does not mint them.
func loginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a coach token for subsequent commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			c := apiclient.New(config.APIURL(), token)
			if err := c.Do("GET", "/v1/schedules?limit=1", nil, nil); err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			if err := config.SaveToken(token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Println("Login successful! Token saved to", config.TokenPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "coach JWT issued by the coaching platform")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved coach token",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.TokenPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("No token saved.")
				return nil
			}
			if err := os.Remove(path); err != nil {
				return err
			}
			fmt.Println("Logged out successfully.")
			return nil
		},
	}
}
