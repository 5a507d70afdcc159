package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"gwi.com/chatsync/internal/core"
)

const welcomeText = "Welcome! Type a message to start a new chat, or /chats to pick an earlier one."

func renderTranscript(v core.View, listing bool, renderer *glamour.TermRenderer) string {
	var b strings.Builder

	if listing || v.ConversationID == "" {
		if v.ConversationID == "" {
			b.WriteString(welcomeText + "\n\n")
		}
		if len(v.Conversations) == 0 {
			b.WriteString(helpStyle.Render("No chats yet.") + "\n")
		}
		for i, c := range v.Conversations {
			marker := " "
			if c.ID == v.ConversationID {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %2d. %s\n", marker, i+1, c.Title)
		}
		if v.ConversationID == "" {
			return b.String()
		}
		b.WriteString("\n")
	}

	for _, m := range v.Messages {
		b.WriteString(queryStyle.Render("You: ") + m.Query + "\n")
		switch {
		case m.Errored:
			b.WriteString(errorStyle.Render("The reply could not be generated.") + "\n\n")
		case m.Generating:
			b.WriteString(pendingStyle.Render("…") + "\n\n")
		default:
			b.WriteString(renderMarkdown(renderer, m.Response) + "\n")
		}
	}
	return b.String()
}

func renderMarkdown(renderer *glamour.TermRenderer, content string) string {
	if renderer == nil {
		return content + "\n"
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}
