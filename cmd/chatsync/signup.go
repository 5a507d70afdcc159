package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"gwi.com/chatsync/internal/auth"
	"gwi.com/chatsync/internal/config"
	"gwi.com/chatsync/internal/logger"
	"gwi.com/chatsync/internal/store"
)

func init() {
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().String("email", "", "account email (default AUTH_EMAIL)")
	signupCmd.Flags().String("password", "", "account password (default AUTH_PASSWORD)")
	signupCmd.Flags().String("name", "", "display name")
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account on the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		if email == "" {
			email = cfg.AuthEmail
		}
		if password == "" {
			password = cfg.AuthPassword
		}
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required")
		}

		var tokens *auth.Tokens
		switch cfg.Backend {
		case config.BackendGraphQL:
			if cfg.AuthURL == "" {
				return fmt.Errorf("AUTH_URL is required to sign up")
			}
			client := auth.NewClient(cfg.AuthURL, &http.Client{Timeout: cfg.RequestTimeout})
			tokens, err = client.SignUp(cmd.Context(), email, password, name)
		default:
			db, derr := store.NewSQLiteStore(cfg.DatabaseURL)
			if derr != nil {
				return derr
			}
			defer db.Close()
			tokens, err = auth.NewLocalProvider(db, cfg.JWTSecret).SignUp(cmd.Context(), email, password, name)
		}
		if err != nil {
			return fmt.Errorf("sign up: %w", err)
		}

		if tokens == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Verify your email, then sign in.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s (user %s).\n", email, tokens.User.ID)
		return nil
	},
}
