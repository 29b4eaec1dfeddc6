package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/storage"
)

// memRepository is an in-memory Repository whose first failures calls fail.
type memRepository struct {
	mu       sync.Mutex
	records  map[string]*storage.SessionRecord
	failures int
	calls    int
	closed   bool
}

func newMem() *memRepository {
	return &memRepository{records: make(map[string]*storage.SessionRecord)}
}

var errUnavailable = errors.New("connection refused")

func (m *memRepository) fail() error {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errUnavailable
	}
	return nil
}

func (m *memRepository) SaveSession(_ context.Context, r *storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	c := *r
	m.records[r.ID] = &c
	return nil
}

func (m *memRepository) GetActive(_ context.Context, profileID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for _, r := range m.records {
		if r.ProfileID == profileID && r.Active {
			return r.ToDomain()
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memRepository) GetHistory(_ context.Context, profileID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := []domain.Session{}
	for _, r := range m.records {
		if r.ProfileID == profileID && !r.Active {
			s, err := r.ToDomain()
			if err != nil {
				return nil, err
			}
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memRepository) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memRepository) Close() error {
	m.closed = true
	return nil
}

func fastGateway(local, remote storage.Repository) *storage.Gateway {
	return storage.NewGateway(local, remote, storage.GatewayOptions{RetryBase: time.Millisecond, MaxRetries: 3})
}

func TestGateway_SaveRetriesRemote(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
		calls    int
	}{
		{name: "healthy", failures: 0, calls: 1},
		{name: "transient", failures: 2, calls: 3},
		{name: "down", failures: 10, wantErr: true, calls: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, remote := newMem(), newMem()
			remote.failures = tt.failures
			gw := fastGateway(local, remote)

			err := gw.Save(context.Background(), *sampleSession("s1", "bob"), true)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrRemoteSync)
				assert.ErrorIs(t, err, errUnavailable)
			} else {
				assert.NoError(t, err)
			}

			assert.Contains(t, local.records, "s1", "local write must happen regardless of remote state")
			assert.Equal(t, tt.calls, remote.calls)
		})
	}
}

func TestGateway_LocalOnly(t *testing.T) {
	local := newMem()
	gw := fastGateway(local, nil)
	ctx := context.Background()

	s, err := gw.LoadActive(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, gw.Save(ctx, *sampleSession("s1", "bob"), true))
	s, err = gw.LoadActive(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "s1", s.ID)

	require.NoError(t, gw.Delete(ctx, "s1"))
	assert.NoError(t, gw.Delete(ctx, "s1"), "deleting an unknown session should succeed")
}

func TestGateway_LoadFallsBackToRemote(t *testing.T) {
	local, remote := newMem(), newMem()
	gw := fastGateway(local, remote)
	ctx := context.Background()

	active, err := storage.FromDomainSession(sampleSession("a1", "bob"), true)
	require.NoError(t, err)
	ended, err := storage.FromDomainSession(sampleSession("h1", "bob"), false)
	require.NoError(t, err)
	remote.records["a1"] = active
	remote.records["h1"] = ended

	s, err := gw.LoadActive(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a1", s.ID)

	history, err := gw.LoadHistory(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "h1", history[0].ID)
}

func TestGateway_DeleteRemovesEverywhere(t *testing.T) {
	local, remote := newMem(), newMem()
	gw := fastGateway(local, remote)
	ctx := context.Background()

	require.NoError(t, gw.Save(ctx, *sampleSession("s1", "bob"), true))
	require.NoError(t, gw.Delete(ctx, "s1"))
	assert.Empty(t, local.records)
	assert.Empty(t, remote.records)

	require.NoError(t, gw.Close())
	assert.True(t, local.closed)
	assert.True(t, remote.closed)
}
