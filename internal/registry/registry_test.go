package registry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/promille/internal/domain"
	"github.com/hperssn/promille/internal/registry"
)

var start = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

func TestRegistry_StartTwiceReusesSession(t *testing.T) {
	r := registry.New()

	first, created := r.Start("alice", start)
	require.True(t, created, "first start should create a session")

	second, created := r.Start("alice", start.Add(time.Minute))
	assert.False(t, created, "second start should reuse the active session")
	assert.Equal(t, first.ID, second.ID)

	other, _ := r.Start("bob", start)
	assert.NotEqual(t, first.ID, other.ID, "profiles must not share sessions")
}

func TestRegistry_EndMovesToHistory(t *testing.T) {
	r := registry.New()
	r.Start("alice", start)
	r.WithActive("alice", func(s *domain.Session) {
		s.CurrentBAC = 0.042
	})

	endAt := start.Add(2 * time.Hour)
	var hooked *domain.Session
	ended, ok := r.End("alice", endAt, domain.EndReasonEnded, func(s *domain.Session) {
		hooked = s.Clone()
	})
	require.True(t, ok)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.EndedAt)
	assert.True(t, ended.EndedAt.Equal(endAt))
	assert.Equal(t, 0.042, ended.CurrentBAC, "final BAC should be frozen")

	require.NotNil(t, hooked, "hook should run for the ended session")
	assert.Equal(t, ended.ID, hooked.ID)
	assert.False(t, hooked.Active)

	_, ok = r.Active("alice")
	assert.False(t, ok, "profile should have no active session after end")
	history := r.History("alice")
	require.Len(t, history, 1)
	assert.Equal(t, ended.ID, history[0].ID)

	_, ok = r.End("alice", endAt, domain.EndReasonEnded, nil)
	assert.False(t, ok, "ending without an active session should report false")
}

func TestRegistry_StartAfterEndCreatesNewSession(t *testing.T) {
	r := registry.New()
	first, _ := r.Start("alice", start)
	r.End("alice", start.Add(time.Hour), domain.EndReasonEnded, nil)

	second, created := r.Start("alice", start.Add(2*time.Hour))
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_Delete(t *testing.T) {
	r := registry.New()
	var deleted []string
	onDeleted := func(s *domain.Session) { deleted = append(deleted, s.ID) }

	active, _ := r.Start("alice", start)
	_, ok := r.Delete(active.ID, onDeleted)
	require.True(t, ok, "active session should be deleted")
	_, ok = r.Active("alice")
	assert.False(t, ok, "profile should revert to no session")

	old, _ := r.Start("alice", start)
	r.End("alice", start.Add(time.Hour), domain.EndReasonEnded, nil)
	_, ok = r.Delete(old.ID, onDeleted)
	require.True(t, ok, "history session should be deleted")
	assert.Empty(t, r.History("alice"))

	_, ok = r.Delete("missing", onDeleted)
	assert.False(t, ok)
	assert.Equal(t, []string{active.ID, old.ID}, deleted)
}

func TestRegistry_WithActiveWithoutSession(t *testing.T) {
	r := registry.New()
	called := false

	_, ok := r.WithActive("nobody", func(*domain.Session) { called = true })
	assert.False(t, ok)
	assert.False(t, called, "WithActive should not run without an active session")
}

func TestRegistry_AutoTerminateStale(t *testing.T) {
	tests := []struct {
		name      string
		after     time.Duration
		terminate bool
	}{
		{name: "eleven hours", after: 11 * time.Hour, terminate: false},
		{name: "thirteen hours", after: 13 * time.Hour, terminate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New()
			r.Start("alice", start)

			hooks := 0
			ended := r.AutoTerminateStale(start.Add(tt.after), 12*time.Hour, func(*domain.Session) { hooks++ })

			_, stillActive := r.Active("alice")
			if tt.terminate {
				require.Len(t, ended, 1)
				assert.False(t, stillActive)
				assert.Equal(t, domain.EndReasonInactivity, ended[0].EndReason)
				assert.Equal(t, 1, hooks)
			} else {
				assert.Empty(t, ended)
				assert.True(t, stillActive)
				assert.Zero(t, hooks)
			}
		})
	}
}

func TestRegistry_AutoTerminateUsesLastEvent(t *testing.T) {
	r := registry.New()
	r.Start("alice", start)
	r.WithActive("alice", func(s *domain.Session) {
		s.InsertDrink(domain.DrinkEvent{ID: "d1", ConsumedAt: start.Add(5 * time.Hour)})
	})

	assert.Empty(t, r.AutoTerminateStale(start.Add(13*time.Hour), 12*time.Hour, nil), "recent drink should keep the session alive")
	assert.Len(t, r.AutoTerminateStale(start.Add(18*time.Hour), 12*time.Hour, nil), 1)
}

func TestRegistry_HistoryOrder(t *testing.T) {
	r := registry.New()
	for i := 0; i < 3; i++ {
		at := start.Add(time.Duration(i) * 24 * time.Hour)
		r.Start("alice", at)
		r.End("alice", at.Add(time.Hour), domain.EndReasonEnded, nil)
	}

	history := r.History("alice")
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].EndedAt.After(*history[i-1].EndedAt), "history not newest first")
	}
}

func TestRegistry_Restore(t *testing.T) {
	r := registry.New()
	active := domain.NewSession("a1", "alice", start)
	ended := domain.NewSession("h1", "alice", start.Add(-48*time.Hour))
	endAt := start.Add(-40 * time.Hour)
	ended.EndedAt = &endAt
	ended.Active = false

	r.Restore(active, []*domain.Session{ended, ended})

	got, ok := r.Active("alice")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)
	assert.Len(t, r.History("alice"), 1, "history should be de-duplicated")

	r.Restore(domain.NewSession("a2", "alice", start), nil)
	got, _ = r.Active("alice")
	assert.Equal(t, "a1", got.ID, "restore must not replace an existing active session")
}

func TestRegistry_RestoredHistoryCanBeDeleted(t *testing.T) {
	r := registry.New()
	ended := domain.NewSession("h1", "carol", start.Add(-48*time.Hour))
	endAt := start.Add(-40 * time.Hour)
	ended.EndedAt = &endAt

	r.Restore(nil, []*domain.Session{ended})

	_, ok := r.Delete("h1", nil)
	assert.True(t, ok)
	assert.Empty(t, r.History("carol"))
}

func TestRegistry_DeleteWaitsForEndHook(t *testing.T) {
	r := registry.New()
	s, _ := r.Start("alice", start)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(op string) {
		mu.Lock()
		order = append(order, op)
		mu.Unlock()
	}

	inHook := make(chan struct{})
	release := make(chan struct{})
	go r.End("alice", start.Add(time.Hour), domain.EndReasonEnded, func(*domain.Session) {
		close(inHook)
		<-release
		record("end")
	})

	<-inHook
	deleted := make(chan bool)
	go func() {
		_, ok := r.Delete(s.ID, func(*domain.Session) { record("delete") })
		deleted <- ok
	}()

	select {
	case <-deleted:
		t.Fatal("delete finished while the end hook still held the profile")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	require.True(t, <-deleted)
	assert.Equal(t, []string{"end", "delete"}, order)
}

func TestRegistry_ConcurrentStart(t *testing.T) {
	r := registry.New()
	ids := make(chan string, 50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := r.Start("alice", start)
			ids <- s.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		require.Equal(t, first, id, "concurrent starts produced two sessions")
	}
}
