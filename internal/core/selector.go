package core

import (
	"context"
	"fmt"
	"sync"

	"gwi.com/chatsync/internal/model"
)

// Selector tracks the active conversation. An empty id means no conversation
// is open and the welcome state is shown.
type Selector struct {
	mu      sync.Mutex
	current string
	title   string

	conversations ConversationManager
}

func NewSelector(conversations ConversationManager) *Selector {
	return &Selector{conversations: conversations}
}

func (s *Selector) Selected() (id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.title
}

// Select switches the active conversation and reports whether it changed.
func (s *Selector) Select(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.current != id
	s.current = id
	s.title = title
	return changed
}

// Create creates a conversation titled after the first message and selects
// it. On failure the selection is left untouched.
func (s *Selector) Create(ctx context.Context, title string) (*model.Conversation, error) {
	conv, err := s.conversations.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.ID == "" {
		return nil, fmt.Errorf("backend returned no conversation id")
	}
	if conv.Title == "" {
		conv.Title = title
	}
	s.Select(conv.ID, conv.Title)
	return conv, nil
}

// Delete removes a conversation and reports whether it was the selected one,
// in which case the selection is cleared. On failure nothing changes.
func (s *Selector) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.conversations.DeleteConversation(ctx, id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != id {
		return false, nil
	}
	s.current = ""
	s.title = ""
	return true, nil
}

// Retitle updates the cached title when id is selected.
func (s *Selector) Retitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == id {
		s.title = title
	}
}
