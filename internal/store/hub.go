package store

import "sync"

// Hub fans out change notifications per chat. A notification only says that
// something changed; watchers re-read the chat themselves.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

// Watch registers interest in chatID. The returned channel has a buffer of
// one so bursts of changes collapse into a single wakeup.
func (h *Hub) Watch(chatID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.watchers[chatID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[chatID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers[chatID], ch)
			if len(h.watchers[chatID]) == 0 {
				delete(h.watchers, chatID)
			}
		})
	}
}

func (h *Hub) Notify(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[chatID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) Watchers(chatID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[chatID])
}
