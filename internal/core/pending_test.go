package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/model"
)

func TestTemporaryIDs(t *testing.T) {
	a, b := NewTemporaryID(), NewTemporaryID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsTemporaryID(a))
	assert.False(t, IsTemporaryID("6f1c1f5e-3f7a-4a53-9d1b-3f8d0f9a2c11"))
	assert.False(t, IsTemporaryID(""))
}

func TestPendingIndex(t *testing.T) {
	p := NewPendingIndex()
	assert.False(t, p.Generating())

	p.Add("tmp")
	assert.True(t, p.Generating())
	assert.True(t, p.Rekey("tmp", "durable"))
	assert.False(t, p.Has("tmp"))
	assert.True(t, p.Has("durable"))
	assert.Equal(t, 1, p.Len())

	assert.False(t, p.Rekey("missing", "other"))
	assert.False(t, p.Has("other"))

	p.Add("b")
	assert.Equal(t, []string{"b", "durable"}, p.IDs())

	assert.True(t, p.Remove("durable"))
	assert.False(t, p.Remove("durable"))
	p.Reset()
	assert.False(t, p.Generating())
}

func TestMessageStoreRekeyKeepsPosition(t *testing.T) {
	s := NewMessageStore()
	s.Add(model.Message{ID: "t1", Query: "one"})
	s.Add(model.Message{ID: "t2", Query: "two"})
	s.Add(model.Message{ID: "t3", Query: "three"})

	require.True(t, s.Rekey("t2", "d2"))
	snap := s.Snapshot()
	assert.Equal(t, []string{"t1", "d2", "t3"}, ids(snap))
	assert.Equal(t, "two", snap[1].Query)
}

func TestMessageStoreRekeyDropsExistingTarget(t *testing.T) {
	s := NewMessageStore()
	s.Add(model.Message{ID: "d1", Query: "stale"})
	s.Add(model.Message{ID: "t1", Query: "fresh"})

	require.True(t, s.Rekey("t1", "d1"))
	require.Equal(t, 1, s.Len())
	m, ok := s.Get("d1")
	require.True(t, ok)
	assert.Equal(t, "fresh", m.Query)
}

func TestMessageStoreOldestUnconfirmed(t *testing.T) {
	s := NewMessageStore()
	first := NewTemporaryID()
	second := NewTemporaryID()
	s.Add(model.Message{ID: "durable", Query: "hi", Generating: true, CreatedAt: ts(0)})
	s.Add(model.Message{ID: second, Query: "hi", Generating: true, CreatedAt: ts(5)})
	s.Add(model.Message{ID: first, Query: "hi", Generating: true, CreatedAt: ts(2)})
	s.Add(model.Message{ID: NewTemporaryID(), Query: "other", Generating: true, CreatedAt: ts(1)})

	m, ok := s.OldestUnconfirmed(func(m model.Message) bool { return m.Query == "hi" })
	require.True(t, ok)
	assert.Equal(t, first, m.ID)

	_, ok = s.OldestUnconfirmed(func(m model.Message) bool { return m.Query == "nope" })
	assert.False(t, ok)
}

func TestMessageStoreSnapshotIsCopy(t *testing.T) {
	s := NewMessageStore()
	s.Add(model.Message{ID: "a"})
	snap := s.Snapshot()
	snap[0].ID = "changed"
	assert.True(t, s.Has("a"))
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
}
