// Package fanout keeps every viewer of a jam looking at the same participant
// snapshot. Change notifications and a low-frequency backstop poll feed one
// refresh loop per jam; on every refresh the full ordered list is re-fetched
// and redelivered, so a lost or duplicated notification can only ever cost
// freshness, never correctness.
package fanout

import (
	"context"
	"log"
	"time"

	"musicjam/internal/model"
	"musicjam/internal/notify"
	"musicjam/internal/repository"
)

// Broadcaster delivers snapshots to connected viewers. Implemented by the
// WebSocket hub; declared here to keep the import direction one-way.
type Broadcaster interface {
	BroadcastParticipants(jamID string, participants []model.Participant)
}

// Worker is the fan-out loop for one jam.
type Worker struct {
	jamID            string
	participants     repository.ParticipantRepo
	notifier         notify.Notifier
	broadcaster      Broadcaster
	backstopInterval time.Duration
	pruneAfter       time.Duration
}

func NewWorker(jamID string, participants repository.ParticipantRepo, notifier notify.Notifier, broadcaster Broadcaster, backstopInterval, pruneAfter time.Duration) *Worker {
	if backstopInterval <= 0 {
		backstopInterval = 3 * time.Second
	}
	return &Worker{
		jamID:            jamID,
		participants:     participants,
		notifier:         notifier,
		broadcaster:      broadcaster,
		backstopInterval: backstopInterval,
		pruneAfter:       pruneAfter,
	}
}

// Run subscribes to the jam's change stream and refreshes viewers until ctx
// is cancelled. The backstop tick fires regardless of notifications, so the
// loop self-heals from any gap in the stream.
func (w *Worker) Run(ctx context.Context) {
	sub, err := w.notifier.SubscribeChanges(ctx, w.jamID)
	if err != nil {
		// Degrade to poll-only rather than stopping delivery.
		log.Printf("[Fanout] jam %s: subscribe failed, backstop poll only: %v", w.jamID, err)
	} else {
		defer sub.Close()
	}

	var changes <-chan struct{}
	if sub != nil {
		changes = sub.Changes()
	}

	ticker := time.NewTicker(w.backstopInterval)
	defer ticker.Stop()

	// Deliver an initial snapshot so a fresh viewer is not blank until the
	// first change.
	w.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.refresh(ctx)
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *Worker) refresh(ctx context.Context) {
	if w.pruneAfter > 0 {
		cutoff := time.Now().Add(-w.pruneAfter)
		if n, err := w.participants.DeleteStale(ctx, w.jamID, cutoff); err != nil {
			log.Printf("[Fanout] jam %s: prune failed: %v", w.jamID, err)
		} else if n > 0 {
			log.Printf("[Fanout] jam %s: pruned %d silent participants", w.jamID, n)
		}
	}

	participants, err := w.participants.ListByJam(ctx, w.jamID)
	if err != nil {
		// Next tick or notification retries; viewers keep the last snapshot.
		log.Printf("[Fanout] jam %s: list failed: %v", w.jamID, err)
		return
	}

	w.broadcaster.BroadcastParticipants(w.jamID, participants)
}
