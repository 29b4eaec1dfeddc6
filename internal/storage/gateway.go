package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hperssn/promille/internal/domain"
)

type GatewayOptions struct {
	RetryBase  time.Duration
	MaxRetries uint64
}

// Gateway writes through the local repository and mirrors every change to an
// optional remote one. Local state is authoritative; remote failures are
// reported but never undo a local write.
type Gateway struct {
	local  Repository
	remote Repository
	opts   GatewayOptions
}

func NewGateway(local, remote Repository, opts GatewayOptions) *Gateway {
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &Gateway{local: local, remote: remote, opts: opts}
}

func (g *Gateway) backoff() retry.Backoff {
	b := retry.NewExponential(g.opts.RetryBase)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(g.opts.MaxRetries, b)
}

// remoteDo retries fn against the remote store. ErrNotFound is final.
func (g *Gateway) remoteDo(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (g *Gateway) Save(ctx context.Context, s domain.Session, isActive bool) error {
	record, err := FromDomainSession(&s, isActive)
	if err != nil {
		return err
	}

	if err := g.local.SaveSession(ctx, record); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	if g.remote == nil {
		return nil
	}

	err = g.remoteDo(ctx, func(ctx context.Context) error {
		return g.remote.SaveSession(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteSync, err)
	}
	return nil
}

// LoadActive returns nil without error when the profile has no active session.
func (g *Gateway) LoadActive(ctx context.Context, profileID string) (*domain.Session, error) {
	s, err := g.local.GetActive(ctx, profileID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Printf("Local lookup of active session for %s failed: %v", profileID, err)
	}
	if g.remote == nil {
		return nil, ignoreNotFound(err)
	}

	var remote *domain.Session
	rerr := g.remoteDo(ctx, func(ctx context.Context) error {
		var err error
		remote, err = g.remote.GetActive(ctx, profileID)
		return err
	})
	if rerr != nil {
		if errors.Is(rerr, ErrNotFound) {
			return nil, ignoreNotFound(err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteSync, rerr)
	}
	return remote, nil
}

// LoadHistory reads local history and falls back to the remote store when the
// local one is empty or unavailable.
func (g *Gateway) LoadHistory(ctx context.Context, profileID string) ([]domain.Session, error) {
	sessions, err := g.local.GetHistory(ctx, profileID)
	if err == nil && (len(sessions) > 0 || g.remote == nil) {
		return sessions, nil
	}
	if err != nil {
		log.Printf("Local history lookup for %s failed: %v", profileID, err)
		if g.remote == nil {
			return nil, err
		}
	}

	var remote []domain.Session
	rerr := g.remoteDo(ctx, func(ctx context.Context) error {
		var err error
		remote, err = g.remote.GetHistory(ctx, profileID)
		return err
	})
	if rerr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteSync, rerr)
	}
	return remote, nil
}

// Delete removes the session everywhere. A session unknown to a store is not an error.
func (g *Gateway) Delete(ctx context.Context, sessionID string) error {
	if err := ignoreNotFound(g.local.DeleteSession(ctx, sessionID)); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	if g.remote == nil {
		return nil
	}

	err := g.remoteDo(ctx, func(ctx context.Context) error {
		return g.remote.DeleteSession(ctx, sessionID)
	})
	if err = ignoreNotFound(err); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteSync, err)
	}
	return nil
}

func (g *Gateway) Close() error {
	var errs []error
	if err := g.local.Close(); err != nil {
		errs = append(errs, err)
	}
	if g.remote != nil {
		if err := g.remote.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
