package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gwi.com/chatsync/internal/model"
)

const defaultReconnectInterval = 2 * time.Second

// View is everything a client surface needs to render one frame.
type View struct {
	ConversationID string               `json:"conversation_id"`
	Title          string               `json:"title"`
	Messages       []model.Message      `json:"messages"`
	Generating     bool                 `json:"generating"`
	Pending        int                  `json:"pending"`
	Degraded       bool                 `json:"degraded"`
	Notice         string               `json:"notice,omitempty"`
	Conversations  []model.Conversation `json:"conversations"`
}

type Options struct {
	Auth     Authenticator
	Backend  Backend
	Recorder Recorder
	Logger   *zap.Logger

	// AllowConcurrentSubmit lets Submit proceed while a reply is still being
	// generated. When false Submit returns ErrBusy instead.
	AllowConcurrentSubmit bool
	// ReconnectInterval is the minimum delay between live feed reconnects.
	ReconnectInterval time.Duration
}

// Session is the entry point used by every client surface. It owns the
// selector and the reconciliation controller of the open conversation and
// keeps the live feed of that conversation running.
type Session struct {
	auth     Authenticator
	backend  Backend
	recorder Recorder
	log      *zap.Logger

	allowConcurrent bool
	reconnect       time.Duration

	selector *Selector
	ctrl     *Controller

	mu            sync.Mutex
	feedCancel    context.CancelFunc
	feedDone      chan struct{}
	degraded      bool
	notice        string
	conversations []model.Conversation
	subs          map[int]chan View
	nextSub       int

	publishMu sync.Mutex
}

func NewSession(opts Options) *Session {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}
	ctrl := NewController(opts.Recorder, opts.Logger)
	ctrl.singleFlight = !opts.AllowConcurrentSubmit
	return &Session{
		auth:            opts.Auth,
		backend:         opts.Backend,
		recorder:        opts.Recorder,
		log:             opts.Logger,
		allowConcurrent: opts.AllowConcurrentSubmit,
		reconnect:       opts.ReconnectInterval,
		selector:        NewSelector(opts.Backend),
		ctrl:            ctrl,
		subs:            make(map[int]chan View),
	}
}

// Select opens a conversation: local state is reset, the history is fetched
// and the live feed is started. An empty id closes the open conversation.
// A failed history fetch leaves the session degraded but still selected.
func (s *Session) Select(ctx context.Context, id, title string) error {
	s.selector.Select(id, title)
	return s.activate(ctx, id)
}

func (s *Session) activate(ctx context.Context, id string) error {
	s.stopFeed()
	s.ctrl.Reset(id)
	s.setStatus(false, "")
	s.publish()

	if id == "" {
		return nil
	}

	err := s.fetchHistory(ctx, id)
	s.startFeed(id)
	return err
}

// Refresh refetches the history of the open conversation.
func (s *Session) Refresh(ctx context.Context) error {
	id, _ := s.selector.Selected()
	if id == "" {
		return ErrNoConversation
	}
	return s.fetchHistory(ctx, id)
}

func (s *Session) fetchHistory(ctx context.Context, id string) error {
	rows, err := s.backend.FetchMessages(ctx, id)
	if err != nil {
		s.log.Warn("history_fetch_failed", zap.String("conversation_id", id), zap.Error(err))
		if s.ctrl.ConversationID() == id {
			s.setStatus(true, "Could not load messages; showing the last known state.")
			s.publish()
		}
		return fmt.Errorf("fetch messages: %w", err)
	}
	if s.ctrl.ApplyHistory(id, rows) {
		s.publish()
	}
	return nil
}

func (s *Session) startFeed(id string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.feedCancel = cancel
	s.feedDone = done
	s.mu.Unlock()

	go s.watch(ctx, id, done)
}

func (s *Session) stopFeed() {
	s.mu.Lock()
	cancel, done := s.feedCancel, s.feedDone
	s.feedCancel, s.feedDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Session) watch(ctx context.Context, id string, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Every(s.reconnect), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		err := s.backend.WatchMessages(ctx, id, func(rows []model.Message) {
			if !s.ctrl.ApplyLive(id, rows) {
				return
			}
			s.clearDegraded(id)
			s.publish()
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("feed closed by server")
		}

		s.recorder.FeedDisconnected()
		s.log.Warn("live_feed_disconnected", zap.String("conversation_id", id), zap.Error(err))
		if s.ctrl.ConversationID() == id {
			s.setStatus(true, "Live updates interrupted; reconnecting.")
			s.publish()
		}
	}
}

// Submit sends a message. Without an open conversation one is created first,
// titled with the message text; if that fails nothing else happens. The
// returned message is the optimistic entry, re-keyed when the backend
// returned a durable id.
func (s *Session) Submit(ctx context.Context, text string) (*model.Message, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.auth == nil || !s.auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	// Begin repeats this check under the controller lock.
	if !s.allowConcurrent && s.ctrl.Generating() {
		return nil, ErrBusy
	}

	convID, _ := s.selector.Selected()
	if convID == "" {
		conv, err := s.selector.Create(ctx, query)
		if err != nil {
			s.recorder.SubmissionFailed(StageCreateConversation)
			s.log.Error("create_conversation_failed", zap.Error(err))
			s.setNotice("Could not start a new chat. Please try again.")
			s.publish()
			return nil, &SubmissionError{Stage: StageCreateConversation, Err: err}
		}
		convID = conv.ID
		s.log.Info("conversation_created", zap.String("conversation_id", convID))
		// History of a fresh conversation is empty; a failure only degrades.
		_ = s.activate(ctx, convID)
		s.reloadConversations(ctx)
	}

	optimistic, err := s.ctrl.Begin(convID, query)
	if err != nil {
		return nil, err
	}
	s.setNotice("")
	s.publish()

	row, err := s.backend.CreateMessage(ctx, convID, query)
	if err != nil {
		s.ctrl.Fail(convID, optimistic.ID)
		s.recorder.SubmissionFailed(StageCreateMessage)
		s.log.Error("create_message_failed", zap.String("conversation_id", convID), zap.Error(err))
		s.setNotice("Message was not sent. Please try again.")
		s.publish()
		return nil, &SubmissionError{Stage: StageCreateMessage, Err: err}
	}

	s.ctrl.Acknowledge(convID, optimistic.ID, row)
	s.publish()

	if row != nil && row.ID != "" {
		optimistic.ID = row.ID
	}
	return &optimistic, nil
}

// Delete removes a conversation. If it was open the session returns to the
// welcome state. On failure the selection is unchanged.
func (s *Session) Delete(ctx context.Context, id string) error {
	cleared, err := s.selector.Delete(ctx, id)
	if err != nil {
		s.log.Error("delete_conversation_failed", zap.String("conversation_id", id), zap.Error(err))
		s.setNotice("Could not delete the chat.")
		s.publish()
		return fmt.Errorf("delete conversation: %w", err)
	}
	if cleared {
		_ = s.activate(ctx, "")
	}
	s.reloadConversations(ctx)
	return nil
}

func (s *Session) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyQuery
	}
	if err := s.backend.RenameConversation(ctx, id, title); err != nil {
		s.setNotice("Could not rename the chat.")
		s.publish()
		return fmt.Errorf("rename conversation: %w", err)
	}
	s.selector.Retitle(id, title)
	s.reloadConversations(ctx)
	return nil
}

// Conversations lists the authenticated user's conversations, newest first,
// and caches them in the view.
func (s *Session) Conversations(ctx context.Context) ([]model.Conversation, error) {
	if s.auth == nil || !s.auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	all, err := s.backend.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	userID := s.auth.UserID()
	out := make([]model.Conversation, 0, len(all))
	for _, c := range all {
		if c.UserID == "" || c.UserID == userID {
			out = append(out, c)
		}
	}

	s.mu.Lock()
	s.conversations = out
	s.mu.Unlock()
	s.publish()
	return out, nil
}

func (s *Session) reloadConversations(ctx context.Context) {
	if _, err := s.Conversations(ctx); err != nil {
		s.log.Warn("conversation_list_refresh_failed", zap.Error(err))
	}
}

func (s *Session) Generating() bool {
	return s.ctrl.Generating()
}

// WaitIdle blocks until no message of the open conversation is generating.
func (s *Session) WaitIdle(ctx context.Context) error {
	views, cancel := s.Subscribe()
	defer cancel()

	if !s.ctrl.Generating() {
		return nil
	}
	for {
		select {
		case v := <-views:
			if !v.Generating {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) View() View {
	id, title := s.selector.Selected()
	ctrlID, messages, pending := s.ctrl.State()
	if ctrlID != id {
		// Selection moved ahead of the controller; show the new empty state.
		messages, pending = nil, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	convs := make([]model.Conversation, len(s.conversations))
	copy(convs, s.conversations)
	return View{
		ConversationID: id,
		Title:          title,
		Messages:       messages,
		Generating:     pending > 0,
		Pending:        pending,
		Degraded:       s.degraded,
		Notice:         s.notice,
		Conversations:  convs,
	}
}

// Subscribe returns a channel that always holds the latest view. The current
// view is delivered immediately.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.publishMu.Lock()
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()
	ch <- s.View()
	s.publishMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	v := s.View()

	s.mu.Lock()
	subs := make([]chan View, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (s *Session) setStatus(degraded bool, notice string) {
	s.mu.Lock()
	s.degraded = degraded
	s.notice = notice
	s.mu.Unlock()
}

func (s *Session) setNotice(notice string) {
	s.mu.Lock()
	s.notice = notice
	s.mu.Unlock()
}

func (s *Session) clearDegraded(id string) {
	if s.ctrl.ConversationID() != id {
		return
	}
	s.mu.Lock()
	if s.degraded {
		s.degraded = false
		s.notice = ""
	}
	s.mu.Unlock()
}

// SignOut returns to the welcome state, forgets the conversation list and
// ends the auth session when the collaborator supports it. Later calls that
// need a user fail with ErrUnauthenticated.
func (s *Session) SignOut() {
	s.selector.Select("", "")
	_ = s.activate(context.Background(), "")
	if so, ok := s.auth.(SignOuter); ok {
		so.SignOut()
	}
	s.mu.Lock()
	s.conversations = nil
	s.mu.Unlock()
	s.publish()
	s.log.Info("signed_out")
}

// Close stops the live feed.
func (s *Session) Close() {
	s.stopFeed()
}
