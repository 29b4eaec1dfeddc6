package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/hperssn/promille/internal/domain"
)

var errDispatcherClosed = errors.New("persistence dispatcher closed")

type persistOp string

const (
	opSave   persistOp = "save"
	opDelete persistOp = "delete"
)

// PersistResult describes one attempted write to the gateway.
type PersistResult struct {
	Op        string
	SessionID string
	ProfileID string
	Active    bool
	Err       error
	At        time.Time
}

type job struct {
	op      persistOp
	session domain.Session
	active  bool
	id      string
	profile string
	barrier chan struct{}
}

// dispatcher runs gateway calls on one goroutine in submission order. The
// queue is unbounded so callers never block on storage.
type dispatcher struct {
	gw      PersistenceGateway
	timeout time.Duration

	mu     sync.Mutex
	queue  []job
	closed bool

	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	results chan PersistResult
}

func newDispatcher(gw PersistenceGateway, timeout time.Duration) *dispatcher {
	d := &dispatcher{
		gw:      gw,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		results: make(chan PersistResult, 64),
	}

	go d.loop()

	return d
}

func (d *dispatcher) enqueue(j job) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, j)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

func (d *dispatcher) save(s *domain.Session, active bool) {
	if !d.enqueue(job{op: opSave, session: *s.Clone(), active: active, id: s.ID, profile: s.ProfileID}) {
		d.report(PersistResult{Op: string(opSave), SessionID: s.ID, ProfileID: s.ProfileID, Active: active, Err: errDispatcherClosed})
	}
}

func (d *dispatcher) delete(sessionID, profileID string) {
	if !d.enqueue(job{op: opDelete, id: sessionID, profile: profileID}) {
		d.report(PersistResult{Op: string(opDelete), SessionID: sessionID, ProfileID: profileID, Err: errDispatcherClosed})
	}
}

// flush returns once every job queued before it has run.
func (d *dispatcher) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !d.enqueue(job{barrier: done}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	<-d.stopped
}

func (d *dispatcher) loop() {
	defer close(d.stopped)

	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		jobs := d.queue
		d.queue = nil
		d.mu.Unlock()

		if len(jobs) == 0 {
			return
		}
		for _, j := range jobs {
			d.run(j)
		}
	}
}

func (d *dispatcher) run(j job) {
	if j.barrier != nil {
		close(j.barrier)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch j.op {
	case opSave:
		err = d.gw.Save(ctx, j.session, j.active)
	case opDelete:
		err = d.gw.Delete(ctx, j.id)
	}
	if err != nil {
		log.Printf("Failed to %s session %s: %v", j.op, j.id, err)
	}

	d.report(PersistResult{
		Op:        string(j.op),
		SessionID: j.id,
		ProfileID: j.profile,
		Active:    j.active,
		Err:       err,
		At:        time.Now(),
	})
}

func (d *dispatcher) report(r PersistResult) {
	select {
	case d.results <- r:
	default:
	}
}
