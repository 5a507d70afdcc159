package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gwi.com/chatsync/internal/store"
)

const (
	defaultQueueSize    = 64
	defaultHistoryTurns = 20
	defaultJobTimeout   = 2 * time.Minute
)

var ErrStopped = errors.New("generator stopped")

// Pool answers queued messages with a Responder and writes the result back
// to the store, waking the chat's live feed.
type Pool struct {
	store     *store.SQLiteStore
	hub       *store.Hub
	responder Responder
	log       *zap.Logger

	workers    int
	jobTimeout time.Duration

	jobs    chan store.Job
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewPool(db *store.SQLiteStore, hub *store.Hub, responder Responder, workers int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		store:      db,
		hub:        hub,
		responder:  responder,
		log:        log,
		workers:    workers,
		jobTimeout: defaultJobTimeout,
		jobs:       make(chan store.Job, defaultQueueSize),
		stopped:    make(chan struct{}),
	}
}

// Start launches the workers and requeues messages left generating by a
// previous run.
func (p *Pool) Start(ctx context.Context) error {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	pending, err := p.store.PendingMessages(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		p.log.Info("requeue_pending_messages", zap.Int("count", len(pending)))
	}
	for _, m := range pending {
		job := store.Job{MessageID: m.ID, ChatID: m.ConversationID, Query: m.Query, CreatedAt: m.CreatedAt}
		if err := p.Enqueue(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) Enqueue(ctx context.Context, job store.Job) error {
	select {
	case <-p.stopped:
		return ErrStopped
	default:
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop makes workers exit after their current job and waits for them.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stopped) })
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case job := <-p.jobs:
			p.process(ctx, worker, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, worker int, job store.Job) {
	log := p.log.With(zap.Int("worker", worker), zap.String("message_id", job.MessageID), zap.String("chat_id", job.ChatID))
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	history, err := p.store.GetLastNMessagesByChatID(jobCtx, job.ChatID, job.CreatedAt, defaultHistoryTurns)
	if err != nil {
		log.Warn("load_history_failed", zap.Error(err))
		history = nil
	}

	response, err := p.responder.Respond(jobCtx, history, job.Query)
	errored := err != nil
	if errored {
		log.Error("generation_failed", zap.Error(err))
		response = ""
	}

	// Completion must land even if the caller is shutting down.
	if err := p.store.CompleteMessage(context.Background(), job.MessageID, response, errored); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("message_gone_before_completion")
			return
		}
		log.Error("complete_message_failed", zap.Error(err))
		return
	}
	p.hub.Notify(job.ChatID)
	log.Info("message_completed", zap.Bool("errored", errored), zap.Duration("took", time.Since(start)))
}
