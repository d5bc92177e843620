package fanout

import (
	"context"
	"sync"
	"time"

	"musicjam/internal/notify"
	"musicjam/internal/repository"
)

// Manager starts one Worker per jam while it has viewers and stops it when
// the last viewer detaches.
type Manager struct {
	participants     repository.ParticipantRepo
	notifier         notify.Notifier
	broadcaster      Broadcaster
	backstopInterval time.Duration
	pruneAfter       time.Duration

	mu      sync.Mutex
	running map[string]*runningWorker
}

type runningWorker struct {
	cancel   context.CancelFunc
	refcount int
	done     chan struct{}
}

func NewManager(participants repository.ParticipantRepo, notifier notify.Notifier, broadcaster Broadcaster, backstopInterval, pruneAfter time.Duration) *Manager {
	return &Manager{
		participants:     participants,
		notifier:         notifier,
		broadcaster:      broadcaster,
		backstopInterval: backstopInterval,
		pruneAfter:       pruneAfter,
		running:          make(map[string]*runningWorker),
	}
}

// Attach registers a viewer of the jam, starting its worker if this is the
// first one.
func (m *Manager) Attach(jamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rw, ok := m.running[jamID]; ok {
		rw.refcount++
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw := &runningWorker{
		cancel:   cancel,
		refcount: 1,
		done:     make(chan struct{}),
	}
	m.running[jamID] = rw

	worker := NewWorker(jamID, m.participants, m.notifier, m.broadcaster, m.backstopInterval, m.pruneAfter)
	go func() {
		defer close(rw.done)
		worker.Run(ctx)
	}()
}

// Detach drops a viewer; the last detach cancels the jam's worker and
// releases its subscription.
func (m *Manager) Detach(jamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rw, ok := m.running[jamID]
	if !ok {
		return
	}
	rw.refcount--
	if rw.refcount > 0 {
		return
	}
	rw.cancel()
	delete(m.running, jamID)
}

// Shutdown cancels every worker and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	workers := make([]*runningWorker, 0, len(m.running))
	for id, rw := range m.running {
		rw.cancel()
		workers = append(workers, rw)
		delete(m.running, id)
	}
	m.mu.Unlock()

	for _, rw := range workers {
		<-rw.done
	}
}
