package generator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/model"
	"gwi.com/chatsync/internal/store"
)

type scriptedResponder struct {
	mu       sync.Mutex
	err      error
	received [][]model.Message
}

func (r *scriptedResponder) Respond(_ context.Context, history []model.Message, query string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, history)
	if r.err != nil {
		return "", r.err
	}
	return "re: " + query, nil
}

func setup(t *testing.T) (*store.SQLiteStore, *store.Hub, string) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "gen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	u, err := db.CreateUser(ctx, "a@example.com", "hash", "")
	require.NoError(t, err)
	chat, err := db.CreateChat(ctx, u.ID, "Chat")
	require.NoError(t, err)
	return db, store.NewHub(), chat.ID
}

func waitDone(t *testing.T, db *store.SQLiteStore, chatID string, n int) []model.Message {
	t.Helper()
	var msgs []model.Message
	require.Eventually(t, func() bool {
		var err error
		msgs, err = db.GetMessagesByChatID(context.Background(), chatID)
		if err != nil || len(msgs) != n {
			return false
		}
		for _, m := range msgs {
			if m.Generating {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return msgs
}

func TestPoolCompletesMessagesWithHistory(t *testing.T) {
	db, hub, chatID := setup(t)
	responder := &scriptedResponder{}
	pool := NewPool(db, hub, responder, 1, nil)
	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	changed, stop := hub.Watch(chatID)
	defer stop()

	first, err := db.CreateMessage(ctx, chatID, "one")
	require.NoError(t, err)
	require.NoError(t, pool.Enqueue(ctx, store.Job{MessageID: first.ID, ChatID: chatID, Query: "one", CreatedAt: first.CreatedAt}))
	msgs := waitDone(t, db, chatID, 1)
	assert.Equal(t, "re: one", msgs[0].Response)
	assert.False(t, msgs[0].Errored)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("hub was not notified")
	}

	time.Sleep(2 * time.Millisecond)
	second, err := db.CreateMessage(ctx, chatID, "two")
	require.NoError(t, err)
	require.NoError(t, pool.Enqueue(ctx, store.Job{MessageID: second.ID, ChatID: chatID, Query: "two", CreatedAt: second.CreatedAt}))
	waitDone(t, db, chatID, 2)

	responder.mu.Lock()
	defer responder.mu.Unlock()
	require.Len(t, responder.received, 2)
	assert.Empty(t, responder.received[0])
	require.Len(t, responder.received[1], 1)
	assert.Equal(t, "one", responder.received[1][0].Query)
}

func TestPoolMarksFailuresErrored(t *testing.T) {
	db, hub, chatID := setup(t)
	pool := NewPool(db, hub, &scriptedResponder{err: errors.New("quota exceeded")}, 2, nil)
	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	msg, err := db.CreateMessage(ctx, chatID, "boom")
	require.NoError(t, err)
	require.NoError(t, pool.Enqueue(ctx, store.Job{MessageID: msg.ID, ChatID: chatID, Query: "boom", CreatedAt: msg.CreatedAt}))

	msgs := waitDone(t, db, chatID, 1)
	assert.True(t, msgs[0].Errored)
	assert.Empty(t, msgs[0].Response)
}

func TestPoolRequeuesPendingOnStart(t *testing.T) {
	db, hub, chatID := setup(t)
	ctx := context.Background()
	_, err := db.CreateMessage(ctx, chatID, "left over")
	require.NoError(t, err)

	pool := NewPool(db, hub, EchoResponder{}, 1, nil)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	msgs := waitDone(t, db, chatID, 1)
	assert.Contains(t, msgs[0].Response, "left over")
}

func TestEnqueueAfterStop(t *testing.T) {
	db, hub, _ := setup(t)
	pool := NewPool(db, hub, EchoResponder{}, 1, nil)
	require.NoError(t, pool.Start(context.Background()))
	pool.Stop()

	assert.ErrorIs(t, pool.Enqueue(context.Background(), store.Job{MessageID: "x"}), ErrStopped)
}

func TestToContentsSkipsUnanswered(t *testing.T) {
	contents := toContents([]model.Message{
		{Query: "a", Response: "b"},
		{Query: "pending"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
