package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type EndReason string

const (
	EndReasonNone       EndReason = ""
	EndReasonEnded      EndReason = "ended"
	EndReasonInactivity EndReason = "inactivity"
)

type Session struct {
	ID         string       `json:"id"`
	ProfileID  string       `json:"profileId"`
	StartedAt  time.Time    `json:"startedAt"`
	EndedAt    *time.Time   `json:"endedAt,omitempty"`
	Drinks     []DrinkEvent `json:"drinks"`
	Foods      []FoodEvent  `json:"foods"`
	CurrentBAC float64      `json:"currentBac"`
	MaxBAC     float64      `json:"maxBac"`
	Status     Status       `json:"status"`
	Series     []Sample     `json:"series"`
	SoberAt    *time.Time   `json:"soberAt,omitempty"`
	LegalAt    *time.Time   `json:"legalAt,omitempty"`
	Active     bool         `json:"active"`
	EndReason  EndReason    `json:"endReason,omitempty"`
	Degraded   bool         `json:"degraded,omitempty"`
	ComputedAt time.Time    `json:"computedAt"`
}

func NewSession(id string, profileID string, startedAt time.Time) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	return &Session{
		ID:        id,
		ProfileID: profileID,
		StartedAt: startedAt,
		Drinks:    []DrinkEvent{},
		Foods:     []FoodEvent{},
		Series:    []Sample{},
		Status:    StatusSafe,
		Active:    true,
	}
}

// LastActivity is the newest event timestamp, or StartedAt when the ledger is empty.
func (s *Session) LastActivity() time.Time {
	last := s.StartedAt
	if n := len(s.Drinks); n > 0 && s.Drinks[n-1].ConsumedAt.After(last) {
		last = s.Drinks[n-1].ConsumedAt
	}
	if n := len(s.Foods); n > 0 && s.Foods[n-1].ConsumedAt.After(last) {
		last = s.Foods[n-1].ConsumedAt
	}
	return last
}

// InsertDrink keeps Drinks ordered by ConsumedAt. Equal timestamps keep insertion order.
func (s *Session) InsertDrink(d DrinkEvent) {
	i := sort.Search(len(s.Drinks), func(i int) bool {
		return s.Drinks[i].ConsumedAt.After(d.ConsumedAt)
	})
	s.Drinks = append(s.Drinks, DrinkEvent{})
	copy(s.Drinks[i+1:], s.Drinks[i:])
	s.Drinks[i] = d
}

func (s *Session) RemoveDrink(id string) bool {
	for i, d := range s.Drinks {
		if d.ID == id {
			s.Drinks = append(s.Drinks[:i], s.Drinks[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) InsertFood(f FoodEvent) {
	i := sort.Search(len(s.Foods), func(i int) bool {
		return s.Foods[i].ConsumedAt.After(f.ConsumedAt)
	})
	s.Foods = append(s.Foods, FoodEvent{})
	copy(s.Foods[i+1:], s.Foods[i:])
	s.Foods[i] = f
}

func (s *Session) RemoveFood(id string) bool {
	for i, f := range s.Foods {
		if f.ID == id {
			s.Foods = append(s.Foods[:i], s.Foods[i+1:]...)
			return true
		}
	}
	return false
}

// Apply writes a recomputation result onto the session's derived fields.
func (s *Session) Apply(snap BacSnapshot) {
	s.CurrentBAC = snap.Current
	s.MaxBAC = snap.Max
	s.Status = snap.Status
	s.Series = snap.Series
	s.SoberAt = snap.SoberAt
	s.LegalAt = snap.LegalAt
	s.Degraded = snap.Degraded
	s.ComputedAt = snap.ComputedAt
}

func (s *Session) Snapshot() BacSnapshot {
	return BacSnapshot{
		Current:    s.CurrentBAC,
		Max:        s.MaxBAC,
		Status:     s.Status,
		SoberAt:    copyTime(s.SoberAt),
		LegalAt:    copyTime(s.LegalAt),
		Series:     append([]Sample{}, s.Series...),
		Degraded:   s.Degraded,
		ComputedAt: s.ComputedAt,
	}
}

// Clone returns a deep copy safe to hand out while the original keeps changing.
func (s *Session) Clone() *Session {
	c := *s
	c.Drinks = append([]DrinkEvent{}, s.Drinks...)
	c.Foods = append([]FoodEvent{}, s.Foods...)
	c.Series = append([]Sample{}, s.Series...)
	c.EndedAt = copyTime(s.EndedAt)
	c.SoberAt = copyTime(s.SoberAt)
	c.LegalAt = copyTime(s.LegalAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
