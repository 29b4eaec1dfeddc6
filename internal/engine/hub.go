package engine

import (
	"sync"

	"github.com/hperssn/promille/internal/domain"
)

// Update is pushed to subscribers after every change to a profile's session.
type Update struct {
	ProfileID string          `json:"profileId"`
	Session   *domain.Session `json:"session,omitempty"`
	Ended     bool            `json:"ended,omitempty"`
	Deleted   bool            `json:"deleted,omitempty"`
}

type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]chan Update
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Update)}
}

func (h *hub) subscribe(profileID string) (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, 8)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	if h.subs[profileID] == nil {
		h.subs[profileID] = make(map[int]chan Update)
	}
	h.subs[profileID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[profileID][id]; ok {
				delete(h.subs[profileID], id)
				close(c)
			}
		})
	}
}

// publish never blocks; a subscriber that falls behind misses updates.
func (h *hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[u.ProfileID] {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for profileID, subs := range h.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subs, profileID)
	}
}
