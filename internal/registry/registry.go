// Package registry owns the in-memory sessions: one optional active session per
// profile plus a flat history of ended ones.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/hperssn/promille/internal/domain"
)

// entry serialises every read and write of one profile's active session.
type entry struct {
	mu     sync.Mutex
	active *domain.Session
}

// Registry is safe for concurrent use. Lock order is entry.mu before r.mu;
// r.mu is never held while waiting for an entry.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*entry
	history  []*domain.Session
}

func New() *Registry {
	return &Registry{
		profiles: make(map[string]*entry),
	}
}

// lookup returns the profile's entry without creating one.
func (r *Registry) lookup(profileID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.profiles[profileID]
	return e, ok
}

// ensure returns the profile's entry, creating it on first use. Only Start
// and Restore create entries.
func (r *Registry) ensure(profileID string) *entry {
	if e, ok := r.lookup(profileID); ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.profiles[profileID]
	if !ok {
		e = &entry{}
		r.profiles[profileID] = e
	}
	return e
}

func (r *Registry) entries() map[string]*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entry, len(r.profiles))
	for id, e := range r.profiles {
		out[id] = e
	}
	return out
}

// Start returns the profile's active session, creating one only when none
// exists. created reports whether a new session was made.
func (r *Registry) Start(profileID string, now time.Time) (s *domain.Session, created bool) {
	e := r.ensure(profileID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		return e.active.Clone(), false
	}
	e.active = domain.NewSession("", profileID, now)
	return e.active.Clone(), true
}

// Hook observes a session while its profile lock is held. It must not call
// back into the registry for the same profile.
type Hook func(s *domain.Session)

// End moves the active session to history, freezing its last computed values.
// onEnded, when set, runs before the profile lock is released.
func (r *Registry) End(profileID string, now time.Time, reason domain.EndReason, onEnded Hook) (*domain.Session, bool) {
	e, ok := r.lookup(profileID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return r.endLocked(e, now, reason, onEnded)
}

func (r *Registry) endLocked(e *entry, now time.Time, reason domain.EndReason, onEnded Hook) (*domain.Session, bool) {
	s := e.active
	if s == nil {
		return nil, false
	}
	ended := now
	s.EndedAt = &ended
	s.Active = false
	s.EndReason = reason
	e.active = nil

	r.mu.Lock()
	r.history = append(r.history, s)
	r.mu.Unlock()

	if onEnded != nil {
		onEnded(s)
	}
	return s.Clone(), true
}

// Delete removes a session from the active slot or history. Deleting an
// active session returns its profile to having no session. Ended sessions
// are removed under their profile lock, so a delete never overtakes the
// hook of the End that archived them. onDeleted runs under that lock too.
func (r *Registry) Delete(sessionID string, onDeleted Hook) (*domain.Session, bool) {
	for _, e := range r.entries() {
		e.mu.Lock()
		if e.active != nil && e.active.ID == sessionID {
			s := e.active
			e.active = nil
			if onDeleted != nil {
				onDeleted(s)
			}
			e.mu.Unlock()
			return s, true
		}
		e.mu.Unlock()
	}

	profileID, ok := r.historyOwner(sessionID)
	if !ok {
		return nil, false
	}
	e, ok := r.lookup(profileID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	r.mu.Lock()
	var removed *domain.Session
	for i, s := range r.history {
		if s.ID == sessionID {
			removed = s
			r.history = append(r.history[:i], r.history[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if removed == nil {
		return nil, false
	}
	if onDeleted != nil {
		onDeleted(removed)
	}
	return removed, true
}

func (r *Registry) historyOwner(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.history {
		if s.ID == sessionID {
			return s.ProfileID, true
		}
	}
	return "", false
}

// WithActive runs fn on the profile's active session while holding its lock
// and returns a copy of the session afterwards. fn must not call back into
// the registry for the same profile.
func (r *Registry) WithActive(profileID string, fn func(s *domain.Session)) (*domain.Session, bool) {
	e, ok := r.lookup(profileID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil, false
	}
	fn(e.active)
	return e.active.Clone(), true
}

func (r *Registry) Active(profileID string) (*domain.Session, bool) {
	e, ok := r.lookup(profileID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil, false
	}
	return e.active.Clone(), true
}

// History returns the profile's ended sessions, most recently ended first.
func (r *Registry) History(profileID string) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Session{}
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ProfileID == profileID {
			out = append(out, r.history[i].Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return endedAt(out[i]).After(endedAt(out[j]))
	})
	return out
}

func endedAt(s *domain.Session) time.Time {
	if s.EndedAt == nil {
		return s.StartedAt
	}
	return *s.EndedAt
}

// Stale lists profiles whose active session has been idle longer than threshold.
func (r *Registry) Stale(now time.Time, threshold time.Duration) []string {
	var out []string
	for id, e := range r.entries() {
		e.mu.Lock()
		if e.active != nil && now.Sub(e.active.LastActivity()) > threshold {
			out = append(out, id)
		}
		e.mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// AutoTerminateStale ends every active session idle longer than threshold.
// Staleness is re-checked under the profile lock so a concurrent mutation
// that just refreshed the session keeps it alive. onEnded runs for each
// ended session before its profile lock is released.
func (r *Registry) AutoTerminateStale(now time.Time, threshold time.Duration, onEnded Hook) []*domain.Session {
	var ended []*domain.Session
	for _, id := range r.Stale(now, threshold) {
		e, ok := r.lookup(id)
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.active != nil && now.Sub(e.active.LastActivity()) > threshold {
			if s, ok := r.endLocked(e, now, domain.EndReasonInactivity, onEnded); ok {
				ended = append(ended, s)
			}
		}
		e.mu.Unlock()
	}
	return ended
}

// Restore loads persisted sessions. An existing active session wins over the
// restored one and history is de-duplicated by id.
func (r *Registry) Restore(active *domain.Session, history []*domain.Session) {
	if active != nil {
		e := r.ensure(active.ProfileID)
		e.mu.Lock()
		if e.active == nil {
			s := active.Clone()
			s.Active = true
			s.EndedAt = nil
			e.active = s
		}
		e.mu.Unlock()
	}
	for _, s := range history {
		if s != nil {
			r.ensure(s.ProfileID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	known := make(map[string]bool, len(r.history))
	for _, s := range r.history {
		known[s.ID] = true
	}
	for _, s := range history {
		if s == nil || known[s.ID] {
			continue
		}
		c := s.Clone()
		c.Active = false
		r.history = append(r.history, c)
		known[s.ID] = true
	}
}
