package core

import "gwi.com/chatsync/internal/model"

// MessageStore holds the optimistic, not yet confirmed messages of the open
// conversation in insertion order.
type MessageStore struct {
	entries []model.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Add(m model.Message) {
	if i := s.indexOf(m.ID); i >= 0 {
		s.entries[i] = m
		return
	}
	s.entries = append(s.entries, m)
}

func (s *MessageStore) Get(id string) (model.Message, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.entries[i], true
	}
	return model.Message{}, false
}

func (s *MessageStore) Has(id string) bool {
	return s.indexOf(id) >= 0
}

func (s *MessageStore) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// Rekey replaces oldID with newID in place. The entry keeps its position and
// any other entry already holding newID is dropped, so the store never holds
// zero or two copies of the message.
func (s *MessageStore) Rekey(oldID, newID string) bool {
	i := s.indexOf(oldID)
	if i < 0 {
		return false
	}
	if oldID == newID {
		return true
	}
	m := s.entries[i]
	m.ID = newID
	s.entries[i] = m
	for j := len(s.entries) - 1; j >= 0; j-- {
		if j != i && s.entries[j].ID == newID {
			s.entries = append(s.entries[:j], s.entries[j+1:]...)
		}
	}
	return true
}

// OldestUnconfirmed returns the oldest entry that still carries a temporary
// id, is generating and satisfies match. Ties on CreatedAt go to the entry
// inserted first.
func (s *MessageStore) OldestUnconfirmed(match func(model.Message) bool) (model.Message, bool) {
	var (
		best  model.Message
		found bool
	)
	for _, m := range s.entries {
		if !IsTemporaryID(m.ID) || !m.Generating || !match(m) {
			continue
		}
		if !found || m.CreatedAt.Before(best.CreatedAt) {
			best, found = m, true
		}
	}
	return best, found
}

// Snapshot returns a copy safe to hand to the merger.
func (s *MessageStore) Snapshot() []model.Message {
	out := make([]model.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *MessageStore) Len() int {
	return len(s.entries)
}

func (s *MessageStore) Reset() {
	s.entries = nil
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
