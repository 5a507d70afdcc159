package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"gwi.com/chatsync/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// Writers would otherwise race for the file lock.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        display_name TEXT NOT NULL DEFAULT '',
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        title TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        chat_id TEXT NOT NULL,
        query TEXT NOT NULL,
        response TEXT NOT NULL DEFAULT '',
        is_generating BOOLEAN NOT NULL DEFAULT TRUE,
        is_error BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.QueryRowContext(ctx, "SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash, displayName string) (*model.User, error) {
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", email, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

// Chat methods
func (s *SQLiteStore) CreateChat(ctx context.Context, userID, title string) (*model.Conversation, error) {
	chat := model.Conversation{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: time.Now().UTC()}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO chats (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare chat insert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, chat.ID, chat.UserID, chat.Title, chat.CreatedAt, chat.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to execute chat insert: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID, userID string) (*model.Conversation, error) {
	var chat model.Conversation
	var title sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT id, user_id, title, created_at FROM chats WHERE id = ? AND user_id = ?", chatID, userID).
		Scan(&chat.ID, &chat.UserID, &title, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	chat.Title = title.String
	return &chat, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, user_id, title, created_at FROM chats WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []model.Conversation{}
	for rows.Next() {
		var chat model.Conversation
		var title sql.NullString
		if err := rows.Scan(&chat.ID, &chat.UserID, &title, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chat.Title = title.String
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) UpdateChatTitle(ctx context.Context, chatID, userID, title string) error {
	stmt, err := s.db.PrepareContext(ctx, "UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare chat title update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, title, time.Now().UTC(), chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to execute chat title update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	return nil
}

// DeleteChat removes the chat's messages and then the chat in one
// transaction.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM chats WHERE id = ?", chatID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up chat: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// Message methods
func (s *SQLiteStore) CreateMessage(ctx context.Context, chatID, query string) (*model.Message, error) {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: chatID,
		Query:          query,
		Generating:     true,
		CreatedAt:      time.Now().UTC(),
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO messages (id, chat_id, query, is_generating, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, msg.ID, msg.ConversationID, msg.Query, msg.Generating, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to execute message insert: %w", err)
	}
	return &msg, nil
}

const messageColumns = "id, chat_id, query, response, is_generating, is_error, created_at"

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Query, &msg.Response, &msg.Generating, &msg.Errored, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE chat_id = ? ORDER BY created_at ASC", chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

// GetLastNMessagesByChatID returns up to n finished messages created before
// the given time, oldest first.
func (s *SQLiteStore) GetLastNMessagesByChatID(ctx context.Context, chatID string, before time.Time, n int) ([]model.Message, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE chat_id = ? AND created_at < ? AND is_generating = FALSE AND is_error = FALSE
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, chatID, before, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CompleteMessage stores the generated response and clears the generating
// flag.
func (s *SQLiteStore) CompleteMessage(ctx context.Context, messageID, response string, errored bool) error {
	stmt, err := s.db.PrepareContext(ctx, "UPDATE messages SET response = ?, is_error = ?, is_generating = FALSE WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare message completion: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, response, errored, messageID)
	if err != nil {
		return fmt.Errorf("failed to execute message completion: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// PendingMessages lists messages still waiting for a response, oldest first.
func (s *SQLiteStore) PendingMessages(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE is_generating = TRUE ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	return scanMessages(rows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
