package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gwi.com/chatsync/internal/logger"
	"gwi.com/chatsync/internal/model"
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("chat", "", "conversation id to post into (default: start a new chat)")
	askCmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for the reply")
	askCmd.Flags().Bool("raw", false, "print the reply without markdown rendering")
}

var askCmd = &cobra.Command{
	Use:   "ask TEXT...",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if chatID, _ := cmd.Flags().GetString("chat"); chatID != "" {
			if err := a.session.Select(ctx, chatID, ""); err != nil {
				return err
			}
		}

		sent, err := a.session.Submit(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := a.session.WaitIdle(ctx); err != nil {
			return fmt.Errorf("waiting for the reply: %w", err)
		}

		reply, ok := findReply(a.session.View().Messages, sent)
		if !ok {
			return fmt.Errorf("reply not found in conversation %s", a.session.View().ConversationID)
		}
		if reply.Errored {
			return fmt.Errorf("the reply could not be generated")
		}

		raw, _ := cmd.Flags().GetBool("raw")
		out := reply.Response
		if !raw {
			if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80)); err == nil {
				if rendered, err := r.Render(out); err == nil {
					out = rendered
				}
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))
		fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", a.session.View().ConversationID)
		return nil
	},
}

// findReply locates the confirmed form of sent: by id, or by query for a
// message that was confirmed without a durable id in the create response.
func findReply(messages []model.Message, sent *model.Message) (model.Message, bool) {
	for _, m := range messages {
		if m.ID == sent.ID {
			return m, true
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Query == sent.Query {
			return messages[i], true
		}
	}
	return model.Message{}, false
}
