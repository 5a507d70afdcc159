package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gwi.com/chatsync/internal/model"
)

// Job asks the generator to answer one message.
type Job struct {
	MessageID string
	ChatID    string
	Query     string
	CreatedAt time.Time
}

// Queue accepts generation jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Backend serves one signed-in user from the local database. It implements
// every collaborator core.Session needs.
type Backend struct {
	store  *SQLiteStore
	hub    *Hub
	queue  Queue
	userID string
	log    *zap.Logger
}

func NewBackend(store *SQLiteStore, hub *Hub, queue Queue, userID string, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{store: store, hub: hub, queue: queue, userID: userID, log: log}
}

func (b *Backend) owned(ctx context.Context, chatID string) error {
	chat, err := b.store.GetChat(ctx, chatID, b.userID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}

func (b *Backend) FetchMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	if err := b.owned(ctx, chatID); err != nil {
		return nil, err
	}
	return b.store.GetMessagesByChatID(ctx, chatID)
}

// WatchMessages sends the current snapshot and then a fresh one after every
// change to the chat.
func (b *Backend) WatchMessages(ctx context.Context, chatID string, onSnapshot func([]model.Message)) error {
	if err := b.owned(ctx, chatID); err != nil {
		return err
	}
	changed, stop := b.hub.Watch(chatID)
	defer stop()

	for {
		rows, err := b.store.GetMessagesByChatID(ctx, chatID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		onSnapshot(rows)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// CreateMessage stores the message as generating and hands it to the
// generator.
func (b *Backend) CreateMessage(ctx context.Context, chatID, query string) (*model.Message, error) {
	if err := b.owned(ctx, chatID); err != nil {
		return nil, err
	}
	msg, err := b.store.CreateMessage(ctx, chatID, query)
	if err != nil {
		return nil, err
	}
	b.hub.Notify(chatID)

	if err := b.queue.Enqueue(ctx, Job{MessageID: msg.ID, ChatID: chatID, Query: query, CreatedAt: msg.CreatedAt}); err != nil {
		b.log.Error("enqueue_generation_failed", zap.String("message_id", msg.ID), zap.Error(err))
		if cerr := b.store.CompleteMessage(context.Background(), msg.ID, "", true); cerr != nil {
			b.log.Error("mark_message_errored_failed", zap.String("message_id", msg.ID), zap.Error(cerr))
		}
		b.hub.Notify(chatID)
	}
	return msg, nil
}

func (b *Backend) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	return b.store.CreateChat(ctx, b.userID, title)
}

func (b *Backend) DeleteConversation(ctx context.Context, chatID string) error {
	if err := b.store.DeleteChat(ctx, chatID, b.userID); err != nil {
		return err
	}
	b.hub.Notify(chatID)
	return nil
}

func (b *Backend) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return b.store.ListChats(ctx, b.userID)
}

func (b *Backend) RenameConversation(ctx context.Context, chatID, title string) error {
	return b.store.UpdateChatTitle(ctx, chatID, b.userID, title)
}
