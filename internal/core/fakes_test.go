package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/model"
)

type fakeAuth struct {
	userID string
}

func (a fakeAuth) Authenticated() bool { return a.userID != "" }
func (a fakeAuth) UserID() string      { return a.userID }

// fakeBackend records calls and lets tests drive the live feed by hand.
type fakeBackend struct {
	mu sync.Mutex

	history  map[string][]model.Message
	watchers map[string]func([]model.Message)
	convs    []model.Conversation

	createConversation func(title string) (*model.Conversation, error)
	createMessage      func(conversationID, query string) (*model.Message, error)
	deleteErr          error
	historyErr         error

	createdMessages []string
	deleted         []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		history:  make(map[string][]model.Message),
		watchers: make(map[string]func([]model.Message)),
	}
}

func (f *fakeBackend) FetchMessages(_ context.Context, id string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]model.Message(nil), f.history[id]...), nil
}

func (f *fakeBackend) WatchMessages(ctx context.Context, id string, onSnapshot func([]model.Message)) error {
	f.mu.Lock()
	f.watchers[id] = onSnapshot
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.watchers, id)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeBackend) CreateMessage(_ context.Context, conversationID, query string) (*model.Message, error) {
	f.mu.Lock()
	f.createdMessages = append(f.createdMessages, query)
	fn := f.createMessage
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(conversationID, query)
}

func (f *fakeBackend) CreateConversation(_ context.Context, title string) (*model.Conversation, error) {
	if f.createConversation != nil {
		return f.createConversation(title)
	}
	conv := model.Conversation{ID: "conv-1", UserID: "user-1", Title: title, CreatedAt: time.Now()}
	f.mu.Lock()
	f.convs = append([]model.Conversation{conv}, f.convs...)
	f.mu.Unlock()
	return &conv, nil
}

func (f *fakeBackend) DeleteConversation(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.convs[:0]
	for _, c := range f.convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.convs = kept
	return nil
}

func (f *fakeBackend) ListConversations(context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Conversation(nil), f.convs...), nil
}

func (f *fakeBackend) RenameConversation(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.convs {
		if f.convs[i].ID == id {
			f.convs[i].Title = title
			return nil
		}
	}
	return errors.New("not found")
}

// push delivers a live snapshot once a watcher for the conversation exists.
func (f *fakeBackend) push(t *testing.T, conversationID string, rows ...model.Message) {
	t.Helper()
	var cb func([]model.Message)
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		cb = f.watchers[conversationID]
		return cb != nil
	}, 2*time.Second, 5*time.Millisecond, "no watcher for %s", conversationID)
	cb(rows)
}

func (f *fakeBackend) watching(conversationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchers[conversationID] != nil
}

// countingRecorder captures recorder calls for assertions.
type countingRecorder struct {
	mu        sync.Mutex
	submitted int
	failed    map[string]int
	confirmed map[string]int
	adopted   int
	pending   []int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failed: map[string]int{}, confirmed: map[string]int{}}
}

func (r *countingRecorder) Submitted() {
	r.mu.Lock()
	r.submitted++
	r.mu.Unlock()
}

func (r *countingRecorder) SubmissionFailed(stage string) {
	r.mu.Lock()
	r.failed[stage]++
	r.mu.Unlock()
}

func (r *countingRecorder) Confirmed(match string, _ bool) {
	r.mu.Lock()
	r.confirmed[match]++
	r.mu.Unlock()
}

func (r *countingRecorder) Adopted() {
	r.mu.Lock()
	r.adopted++
	r.mu.Unlock()
}

func (r *countingRecorder) Pending(n int) {
	r.mu.Lock()
	r.pending = append(r.pending, n)
	r.mu.Unlock()
}

func (r *countingRecorder) FeedDisconnected() {}

func ts(sec int) time.Time {
	return time.Date(2025, 1, 1, 12, 0, sec, 0, time.UTC)
}
