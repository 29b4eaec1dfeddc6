// Package engine is the entry point for every session operation. It keeps the
// registry, the BAC model and persistence in step: each mutation recomputes
// the session under its profile lock, then queues an asynchronous save.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hperssn/promille/internal/bac"
	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/platform/clock"
	"github.com/hperssn/promille/internal/platform/numeric"
	"github.com/hperssn/promille/internal/registry"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionNotFound = errors.New("session not found")
	ErrEventNotFound   = errors.New("event not found")
)

// ProfileStore supplies read-only profile attributes.
type ProfileStore interface {
	Get(profileID string) (domain.Profile, bool)
}

// PersistenceGateway stores sessions. The engine never waits on it for
// correctness; failures are logged and reported on PersistResults.
type PersistenceGateway interface {
	Save(ctx context.Context, s domain.Session, isActive bool) error
	LoadActive(ctx context.Context, profileID string) (*domain.Session, error)
	LoadHistory(ctx context.Context, profileID string) ([]domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type Options struct {
	InactivityThreshold time.Duration
	SweepInterval       time.Duration
	PersistTimeout      time.Duration
	Clock               clock.Clock
}

func (o Options) withDefaults() Options {
	if o.InactivityThreshold <= 0 {
		o.InactivityThreshold = 12 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.SystemClock{}
	}
	return o
}

// Result is what every operation hands back. Applied is false when the call
// changed nothing.
type Result struct {
	Session  *domain.Session     `json:"session,omitempty"`
	Snapshot *domain.BacSnapshot `json:"snapshot,omitempty"`
	Applied  bool                `json:"applied"`
}

func resultOf(s *domain.Session, applied bool) Result {
	if s == nil {
		return Result{Applied: applied}
	}
	snap := s.Snapshot()
	return Result{Session: s, Snapshot: &snap, Applied: applied}
}

type Engine struct {
	registry *registry.Registry
	model    *bac.Model
	profiles ProfileStore
	gateway  PersistenceGateway
	persist  *dispatcher
	hub      *hub
	opts     Options
}

// New wires an engine. A nil gateway disables persistence.
func New(reg *registry.Registry, model *bac.Model, profiles ProfileStore, gateway PersistenceGateway, opts Options) *Engine {
	if gateway == nil {
		gateway = nopGateway{}
	}
	opts = opts.withDefaults()

	return &Engine{
		registry: reg,
		model:    model,
		profiles: profiles,
		gateway:  gateway,
		persist:  newDispatcher(gateway, opts.PersistTimeout),
		hub:      newHub(),
		opts:     opts,
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Clock.Now()
}

func (e *Engine) profile(profileID string) *domain.Profile {
	if e.profiles == nil {
		return nil
	}
	p, ok := e.profiles.Get(profileID)
	if !ok {
		log.Printf("WARN: profile %s not found, BAC left at zero", profileID)
		return nil
	}
	return &p
}

func (e *Engine) recompute(s *domain.Session, now time.Time) {
	s.Apply(e.model.Recompute(s, e.profile(s.ProfileID), now))
}

// commit queues a save and broadcasts the session. Callers holding the
// profile lock get saves queued in mutation order.
func (e *Engine) commit(s *domain.Session) {
	e.persist.save(s, s.Active)
	e.hub.publish(Update{ProfileID: s.ProfileID, Session: s.Clone(), Ended: !s.Active})
}

// StartSession returns the profile's active session, creating it when needed.
func (e *Engine) StartSession(profileID string) (Result, error) {
	now := e.now()
	_, created := e.registry.Start(profileID, now)

	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		e.recompute(s, now)
		if created {
			e.commit(s)
		}
	})
	if !ok {
		// ended or deleted between the two calls
		return Result{}, ErrNoActiveSession
	}
	if created {
		log.Printf("Started session %s for profile %s", s.ID, profileID)
	}
	return resultOf(s, created), nil
}

// EndSession closes the active session, keeping its last computed BAC.
func (e *Engine) EndSession(profileID string) (Result, error) {
	s, ok := e.registry.End(profileID, e.now(), domain.EndReasonEnded, e.commit)
	if !ok {
		return Result{}, ErrNoActiveSession
	}
	log.Printf("Ended session %s for profile %s (final BAC %.4f)", s.ID, profileID, s.CurrentBAC)
	return resultOf(s, true), nil
}

// DeleteSession permanently removes an active or ended session.
func (e *Engine) DeleteSession(sessionID string) (Result, error) {
	s, ok := e.registry.Delete(sessionID, func(s *domain.Session) {
		e.persist.delete(s.ID, s.ProfileID)
		if s.Active {
			e.hub.publish(Update{ProfileID: s.ProfileID, Deleted: true})
		}
	})
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	log.Printf("Deleted session %s of profile %s", s.ID, s.ProfileID)
	return Result{Applied: true}, nil
}

func (e *Engine) prepareDrink(d domain.DrinkEvent, now time.Time) domain.DrinkEvent {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.ConsumedAt.IsZero() {
		d.ConsumedAt = now
	} else if d.ConsumedAt.After(now) {
		log.Printf("WARN: drink %s is in the future (%s), recording it now", d.ID, d.ConsumedAt.Format(time.RFC3339))
		d.ConsumedAt = now
	}
	d.VolumeMl = numeric.NonNegative(d.VolumeMl)
	d.ABV = numeric.NonNegative(d.ABV)
	if d.AlcoholGrams <= 0 {
		d.AlcoholGrams = e.model.AlcoholGrams(d.VolumeMl, d.ABV)
	}
	return d
}

func (e *Engine) prepareFood(f domain.FoodEvent, now time.Time) domain.FoodEvent {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.ConsumedAt.IsZero() || f.ConsumedAt.After(now) {
		f.ConsumedAt = now
	}
	if f.Amount == "" {
		f.Amount = domain.AmountMedium
	}
	f.AbsorptionFactor = domain.AbsorptionFor(f.Category, f.Amount, f.AbsorptionFactor)
	return f
}

// notBefore clamps an event to at most one inactivity threshold before the
// session started.
func (e *Engine) notBefore(s *domain.Session, kind, id string, at time.Time) time.Time {
	earliest := s.StartedAt.Add(-e.opts.InactivityThreshold)
	if at.Before(earliest) {
		log.Printf("WARN: %s %s predates session %s (%s), recording it at %s",
			kind, id, s.ID, at.Format(time.RFC3339), earliest.Format(time.RFC3339))
		return earliest
	}
	return at
}

// AddDrink records a drink on the active session and recomputes it.
func (e *Engine) AddDrink(profileID string, d domain.DrinkEvent) (Result, error) {
	now := e.now()
	d = e.prepareDrink(d, now)

	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		d.ConsumedAt = e.notBefore(s, "drink", d.ID, d.ConsumedAt)
		s.InsertDrink(d)
		e.recompute(s, now)
		e.commit(s)
	})
	if !ok {
		return Result{}, ErrNoActiveSession
	}
	return resultOf(s, true), nil
}

func (e *Engine) RemoveDrink(profileID, drinkID string) (Result, error) {
	removed := false
	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		if removed = s.RemoveDrink(drinkID); removed {
			e.recompute(s, e.now())
			e.commit(s)
		}
	})
	return e.finishRemoval(s, ok, removed, drinkID)
}

// AddFood records food on the active session. Food changes absorption of
// drinks around it, so the whole session is recomputed.
func (e *Engine) AddFood(profileID string, f domain.FoodEvent) (Result, error) {
	now := e.now()
	f = e.prepareFood(f, now)

	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		f.ConsumedAt = e.notBefore(s, "food", f.ID, f.ConsumedAt)
		s.InsertFood(f)
		e.recompute(s, now)
		e.commit(s)
	})
	if !ok {
		return Result{}, ErrNoActiveSession
	}
	return resultOf(s, true), nil
}

func (e *Engine) RemoveFood(profileID, foodID string) (Result, error) {
	removed := false
	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		if removed = s.RemoveFood(foodID); removed {
			e.recompute(s, e.now())
			e.commit(s)
		}
	})
	return e.finishRemoval(s, ok, removed, foodID)
}

func (e *Engine) finishRemoval(s *domain.Session, ok, removed bool, eventID string) (Result, error) {
	if !ok {
		return Result{}, ErrNoActiveSession
	}
	if !removed {
		return resultOf(s, false), fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return resultOf(s, true), nil
}

// ActiveSession returns the active session with its BAC brought up to now.
func (e *Engine) ActiveSession(profileID string) (Result, error) {
	now := e.now()
	s, ok := e.registry.WithActive(profileID, func(s *domain.Session) {
		e.recompute(s, now)
	})
	if !ok {
		return Result{}, ErrNoActiveSession
	}
	return resultOf(s, false), nil
}

// History returns ended sessions, most recent first.
func (e *Engine) History(profileID string) []Result {
	sessions := e.registry.History(profileID)
	out := make([]Result, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, resultOf(s, false))
	}
	return out
}

// Rehydrate loads persisted sessions for the given profiles. Load failures
// are logged and returned together; profiles that loaded are kept.
func (e *Engine) Rehydrate(ctx context.Context, profileIDs []string) error {
	var errs []error
	now := e.now()

	for _, id := range profileIDs {
		active, err := e.gateway.LoadActive(ctx, id)
		if err != nil {
			log.Printf("Failed to load active session for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("load active %s: %w", id, err))
		}
		stored, err := e.gateway.LoadHistory(ctx, id)
		if err != nil {
			log.Printf("Failed to load history for %s: %v", id, err)
			errs = append(errs, fmt.Errorf("load history %s: %w", id, err))
		}

		history := make([]*domain.Session, 0, len(stored))
		for i := range stored {
			history = append(history, &stored[i])
		}
		e.registry.Restore(active, history)
		e.registry.WithActive(id, func(s *domain.Session) {
			e.recompute(s, now)
		})
	}
	return errors.Join(errs...)
}

// Subscribe streams updates for one profile until cancel is called.
func (e *Engine) Subscribe(profileID string) (<-chan Update, func()) {
	return e.hub.subscribe(profileID)
}

// PersistResults reports the outcome of every asynchronous save or delete.
// Results are dropped when nobody reads them.
func (e *Engine) PersistResults() <-chan PersistResult {
	return e.persist.results
}

// Flush waits until every save queued before the call has been attempted.
func (e *Engine) Flush(ctx context.Context) error {
	return e.persist.flush(ctx)
}

// Close drains pending saves and stops the dispatcher.
func (e *Engine) Close() {
	e.persist.close()
	e.hub.close()
}

type nopGateway struct{}

func (nopGateway) Save(context.Context, domain.Session, bool) error { return nil }
func (nopGateway) LoadActive(context.Context, string) (*domain.Session, error) {
	return nil, nil
}
func (nopGateway) LoadHistory(context.Context, string) ([]domain.Session, error) {
	return nil, nil
}
func (nopGateway) Delete(context.Context, string) error { return nil }
