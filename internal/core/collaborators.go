package core

import (
	"context"

	"gwi.com/chatsync/internal/model"
)

// Authenticator is the slice of the auth collaborator the engine consumes.
type Authenticator interface {
	Authenticated() bool
	UserID() string
}

// SignOuter is implemented by auth collaborators that can end the session.
type SignOuter interface {
	SignOut()
}

type HistoryFetcher interface {
	// FetchMessages returns the conversation's messages ordered by creation.
	FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

type LiveFeed interface {
	// WatchMessages pushes the full current message list of the conversation
	// every time any row changes. It blocks until ctx is cancelled or the
	// feed fails.
	WatchMessages(ctx context.Context, conversationID string, onSnapshot func([]model.Message)) error
}

type MessageCreator interface {
	// CreateMessage may return a nil row or a row without an id; the engine
	// then falls back to matching the live feed by query text.
	CreateMessage(ctx context.Context, conversationID, query string) (*model.Message, error)
}

type ConversationCreator interface {
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
}

type ConversationDeleter interface {
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, conversationID string) error
}

type ConversationManager interface {
	ConversationCreator
	ConversationDeleter
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, title string) error
}

// Backend bundles every collaborator a Session talks to. Both the GraphQL
// adapter and the local SQLite backend implement it.
type Backend interface {
	HistoryFetcher
	LiveFeed
	MessageCreator
	ConversationManager
}
