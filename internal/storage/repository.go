package storage

import (
	"context"
	"errors"

	"github.com/hperssn/promille/internal/domain"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrRemoteSync = errors.New("remote sync failed")
)

type Repository interface {
	// SaveSession inserts or replaces the session row.
	SaveSession(ctx context.Context, record *SessionRecord) error

	// GetActive returns the profile's active session or ErrNotFound.
	GetActive(ctx context.Context, profileID string) (*domain.Session, error)

	// GetHistory returns ended sessions, most recently ended first.
	GetHistory(ctx context.Context, profileID string) ([]domain.Session, error)

	DeleteSession(ctx context.Context, sessionID string) error

	Close() error
}
