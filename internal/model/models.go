package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PasswordHash string    `json:"-"` // Local backend only, never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is a chat row. It is created lazily with the first message's
// text as its title.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one question/answer exchange. The JSON tags follow the
// backend's row shape so rows decode straight from GraphQL payloads.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"chat_id"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	Generating     bool      `json:"isGenerating"`
	Errored        bool      `json:"isError"`
	CreatedAt      time.Time `json:"created_at"`
}

// Done reports whether the generation process has finished with the message,
// successfully or not.
func (m Message) Done() bool {
	return !m.Generating || m.Errored
}
