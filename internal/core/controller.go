package core

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gwi.com/chatsync/internal/model"
)

// Controller reconciles optimistic messages of one conversation with the
// historical and live snapshots the backend delivers.
//
// All state lives behind one mutex, so a re-key is never observed half done
// by Transcript.
type Controller struct {
	mu sync.Mutex

	conversationID string
	store          *MessageStore
	pending        *PendingIndex
	historical     []model.Message
	live           []model.Message

	// seen holds every row id delivered by any snapshot of this conversation.
	// Only rows appearing for the first time are fallback candidates.
	seen map[string]struct{}
	// resolved maps a temporary id to the durable id it was re-keyed to or
	// retired as. A late create response for it is ignored.
	resolved map[string]string
	retired  map[string]struct{}

	// singleFlight makes Begin refuse a second message while one is pending.
	singleFlight bool

	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
}

func NewController(recorder Recorder, log *zap.Logger) *Controller {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		store:    NewMessageStore(),
		pending:  NewPendingIndex(),
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
	c.resetLocked("")
	return c
}

// Reset discards all state and binds the controller to conversationID.
// Callbacks still in flight for the previous conversation are dropped.
func (c *Controller) Reset(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(conversationID)
	c.recorder.Pending(0)
}

func (c *Controller) resetLocked(conversationID string) {
	c.conversationID = conversationID
	c.store.Reset()
	c.pending.Reset()
	c.historical = nil
	c.live = nil
	c.seen = make(map[string]struct{})
	c.resolved = make(map[string]string)
	c.retired = make(map[string]struct{})
}

func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Begin inserts an optimistic message under a fresh temporary id and marks it
// pending. In single-flight mode it returns ErrBusy while anything is pending.
func (c *Controller) Begin(conversationID, query string) (model.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID == "" || conversationID != c.conversationID {
		return model.Message{}, ErrConversationChanged
	}
	if c.singleFlight && c.pending.Generating() {
		return model.Message{}, ErrBusy
	}

	m := model.Message{
		ID:             NewTemporaryID(),
		ConversationID: conversationID,
		Query:          query,
		Generating:     true,
		CreatedAt:      c.now(),
	}
	c.store.Add(m)
	c.pending.Add(m.ID)

	c.recorder.Submitted()
	c.recorder.Pending(c.pending.Len())
	c.log.Debug("optimistic_inserted", zap.String("conversation_id", conversationID), zap.String("id", m.ID))
	return m, nil
}

// Acknowledge applies a successful create response. When the response carries
// a durable id the optimistic entry and its pending mark are re-keyed to it in
// one step; without one the entry waits for a fallback match on the live feed.
func (c *Controller) Acknowledge(conversationID, tempID string, row *model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID != c.conversationID {
		return
	}
	if durable, ok := c.resolved[tempID]; ok {
		c.log.Debug("late_create_response_ignored", zap.String("id", tempID), zap.String("resolved_as", durable))
		return
	}
	if !c.store.Has(tempID) {
		return
	}
	if row == nil || row.ID == "" {
		c.log.Debug("create_response_without_id", zap.String("id", tempID))
		return
	}

	durable := row.ID
	c.resolved[tempID] = durable

	if _, gone := c.retired[durable]; gone {
		c.retireLocked(tempID)
		return
	}
	if liveRow, ok := c.liveRowLocked(durable); ok && liveRow.Done() {
		c.store.Rekey(tempID, durable)
		c.pending.Rekey(tempID, durable)
		c.confirmLocked(durable, "id", liveRow.Errored)
		return
	}

	c.store.Rekey(tempID, durable)
	c.pending.Rekey(tempID, durable)
	c.log.Debug("optimistic_rekeyed", zap.String("from", tempID), zap.String("to", durable))
}

// Fail discards the optimistic entry of a create call that errored. Nothing
// is retried.
func (c *Controller) Fail(conversationID, tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID != c.conversationID {
		return
	}
	id := tempID
	if durable, ok := c.resolved[tempID]; ok {
		id = durable
	}
	removed := c.store.Remove(id)
	if c.pending.Remove(id) || removed {
		c.retired[id] = struct{}{}
		c.retired[tempID] = struct{}{}
		c.recorder.Pending(c.pending.Len())
		c.log.Debug("optimistic_discarded", zap.String("id", id))
	}
}

// ApplyHistory replaces the historical snapshot.
func (c *Controller) ApplyHistory(conversationID string, rows []model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID != c.conversationID {
		return false
	}
	c.historical = cloneMessages(rows)
	c.reconcileLocked(rows, false)
	return true
}

// ApplyLive replaces the live snapshot and retires every pending message the
// feed reports as finished.
func (c *Controller) ApplyLive(conversationID string, rows []model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conversationID != c.conversationID {
		return false
	}
	c.live = cloneMessages(rows)
	c.reconcileLocked(rows, true)
	return true
}

// reconcileLocked matches snapshot rows to pending messages: by id first, then
// by query text for rows never seen before. Only live rows retire.
func (c *Controller) reconcileLocked(rows []model.Message, live bool) {
	for _, row := range rows {
		if c.pending.Has(row.ID) {
			if live && row.Done() {
				c.confirmLocked(row.ID, "id", row.Errored)
			}
			continue
		}
		if _, ok := c.seen[row.ID]; ok {
			continue
		}
		if _, ok := c.retired[row.ID]; ok {
			continue
		}

		entry, ok := c.store.OldestUnconfirmed(func(m model.Message) bool {
			return m.Query == row.Query
		})
		if !ok {
			continue
		}

		c.resolved[entry.ID] = row.ID
		c.store.Rekey(entry.ID, row.ID)
		c.pending.Rekey(entry.ID, row.ID)
		if live && row.Done() {
			c.retired[entry.ID] = struct{}{}
			c.confirmLocked(row.ID, "query", row.Errored)
			continue
		}
		c.recorder.Adopted()
		c.log.Debug("optimistic_adopted", zap.String("from", entry.ID), zap.String("to", row.ID))
	}

	for _, row := range rows {
		c.seen[row.ID] = struct{}{}
	}
}

func (c *Controller) confirmLocked(id, match string, errored bool) {
	c.retireLocked(id)
	c.recorder.Confirmed(match, errored)
	c.log.Debug("message_confirmed", zap.String("id", id), zap.String("match", match), zap.Bool("errored", errored))
}

func (c *Controller) retireLocked(id string) {
	c.store.Remove(id)
	c.pending.Remove(id)
	c.retired[id] = struct{}{}
	c.recorder.Pending(c.pending.Len())
}

func (c *Controller) liveRowLocked(id string) (model.Message, bool) {
	for _, m := range c.live {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// Transcript is the merged view of the three sources.
func (c *Controller) Transcript() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Merge(c.store.Snapshot(), c.historical, c.live)
}

func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Generating()
}

func (c *Controller) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.IDs()
}

// State returns the transcript and indicator from one consistent read.
func (c *Controller) State() (conversationID string, transcript []model.Message, pending int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID, Merge(c.store.Snapshot(), c.historical, c.live), c.pending.Len()
}

func cloneMessages(in []model.Message) []model.Message {
	if in == nil {
		return nil
	}
	out := make([]model.Message, len(in))
	copy(out, in)
	return out
}
