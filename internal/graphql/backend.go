package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gwi.com/chatsync/internal/model"
)

// Backend implements core.Backend against a Hasura-style GraphQL API.
type Backend struct {
	client *Client
	subs   *Subscriber
}

func NewBackend(client *Client, subs *Subscriber) *Backend {
	return &Backend{client: client, subs: subs}
}

type messageRow struct {
	ID           string  `json:"id"`
	ChatID       string  `json:"chat_id"`
	Query        string  `json:"query"`
	Response     *string `json:"response"`
	IsError      *bool   `json:"isError"`
	IsGenerating *bool   `json:"isGenerating"`
	CreatedAt    string  `json:"created_at"`
}

func (r messageRow) toModel() model.Message {
	m := model.Message{
		ID:             r.ID,
		ConversationID: r.ChatID,
		Query:          r.Query,
		CreatedAt:      parseTimestamp(r.CreatedAt),
	}
	if r.Response != nil {
		m.Response = *r.Response
	}
	if r.IsError != nil {
		m.Errored = *r.IsError
	}
	if r.IsGenerating != nil {
		m.Generating = *r.IsGenerating
	}
	return m
}

type chatRow struct {
	ID        string  `json:"id"`
	Title     *string `json:"title"`
	UserID    string  `json:"user_id"`
	CreatedAt string  `json:"created_at"`
}

func (r chatRow) toModel() model.Conversation {
	c := model.Conversation{ID: r.ID, UserID: r.UserID, CreatedAt: parseTimestamp(r.CreatedAt)}
	if r.Title != nil {
		c.Title = *r.Title
	}
	return c
}

// Hasura renders timestamptz with an offset and timestamp without one.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp returns the zero time for values it cannot read; the merge
// keeps such rows in arrival order.
func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func messagesToModel(rows []messageRow) []model.Message {
	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func (b *Backend) FetchMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var data struct {
		Messages []messageRow `json:"messages"`
	}
	if err := b.client.Do(ctx, getChatMessages, map[string]interface{}{"chatId": conversationID}, &data); err != nil {
		return nil, err
	}
	return messagesToModel(data.Messages), nil
}

func (b *Backend) WatchMessages(ctx context.Context, conversationID string, onSnapshot func([]model.Message)) error {
	vars := map[string]interface{}{"chatId": conversationID}
	return b.subs.Subscribe(ctx, messagesSubscription, vars, func(raw json.RawMessage) error {
		var data struct {
			Messages []messageRow `json:"messages"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("failed to decode messages snapshot: %w", err)
		}
		onSnapshot(messagesToModel(data.Messages))
		return nil
	})
}

func (b *Backend) CreateMessage(ctx context.Context, conversationID, query string) (*model.Message, error) {
	var data struct {
		Message *messageRow `json:"insert_messages_one"`
	}
	vars := map[string]interface{}{"chatId": conversationID, "query": query}
	if err := b.client.Do(ctx, createMessage, vars, &data); err != nil {
		return nil, err
	}
	if data.Message == nil {
		return nil, nil
	}
	m := data.Message.toModel()
	return &m, nil
}

func (b *Backend) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	var data struct {
		Chat *chatRow `json:"insert_chats_one"`
	}
	if err := b.client.Do(ctx, createChat, map[string]interface{}{"title": title}, &data); err != nil {
		return nil, err
	}
	if data.Chat == nil {
		return nil, fmt.Errorf("insert_chats_one returned no row")
	}
	c := data.Chat.toModel()
	return &c, nil
}

func (b *Backend) DeleteConversation(ctx context.Context, conversationID string) error {
	var data struct {
		Chat *struct {
			ID string `json:"id"`
		} `json:"delete_chats_by_pk"`
	}
	if err := b.client.Do(ctx, deleteChat, map[string]interface{}{"chatId": conversationID}, &data); err != nil {
		return err
	}
	if data.Chat == nil {
		return fmt.Errorf("chat %s not found", conversationID)
	}
	return nil
}

func (b *Backend) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var data struct {
		Chats []chatRow `json:"chats"`
	}
	if err := b.client.Do(ctx, getUserChats, nil, &data); err != nil {
		return nil, err
	}
	out := make([]model.Conversation, 0, len(data.Chats))
	for _, c := range data.Chats {
		out = append(out, c.toModel())
	}
	return out, nil
}

func (b *Backend) RenameConversation(ctx context.Context, conversationID, title string) error {
	var data struct {
		Chat *struct {
			ID string `json:"id"`
		} `json:"update_chats_by_pk"`
	}
	vars := map[string]interface{}{"chatId": conversationID, "title": title}
	if err := b.client.Do(ctx, updateChatTitle, vars, &data); err != nil {
		return err
	}
	if data.Chat == nil {
		return fmt.Errorf("chat %s not found", conversationID)
	}
	return nil
}
