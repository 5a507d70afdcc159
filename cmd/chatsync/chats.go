package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gwi.com/chatsync/internal/logger"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(renameCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List your conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		convs, err := a.session.Conversations(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tTITLE")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.CreatedAt.Local().Format(time.DateTime), c.Title)
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a conversation and all of its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename ID TITLE",
	Short: "Change a conversation's title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.session.Rename(cmd.Context(), args[0], args[1])
	},
}
