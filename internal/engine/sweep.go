package engine

import (
	"context"
	"log"
	"time"

	"github.com/hperssn/promille/internal/domain"
)

// Run sweeps for inactive sessions once immediately and then every
// SweepInterval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()

	log.Printf("Session sweeper started (every %s, inactivity %s)", e.opts.SweepInterval, e.opts.InactivityThreshold)

	e.Sweep()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper shutting down...")
			return nil
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep ends every session idle for longer than the inactivity threshold.
func (e *Engine) Sweep() []*domain.Session {
	return e.registry.AutoTerminateStale(e.now(), e.opts.InactivityThreshold, func(s *domain.Session) {
		log.Printf("Session %s of profile %s ended after %s of inactivity", s.ID, s.ProfileID, e.opts.InactivityThreshold)
		e.commit(s)
	})
}
