package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gwi.com/chatsync/internal/logger"
	"gwi.com/chatsync/internal/ui"
)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal chat client",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// The terminal belongs to the UI; logs go to a file.
		if err := setupLogging(cfg, "chatsync.log"); err != nil {
			return err
		}
		defer logger.Sync()

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.session.Conversations(cmd.Context()); err != nil {
			logger.Log.Warn("initial_conversation_list_failed")
		}

		p := tea.NewProgram(ui.New(cmd.Context(), a.session), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}
