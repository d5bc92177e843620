// Package view holds the client-side merge logic that turns at-least-once,
// unordered snapshot deliveries into a stable display. Redelivered snapshots
// with no meaningful change are merged silently; real changes go through a
// short two-phase transition so cards never flicker.
package view

import (
	"sync"
	"time"

	"musicjam/internal/model"
)

// EventKind classifies reconciler signals.
type EventKind string

const (
	// EventApplied fires when an entity is shown for the first time; no
	// transition is played.
	EventApplied EventKind = "applied"
	// EventTransitionStart fires when a participant's (trackId, isPlaying)
	// changed; the old data is still displayed.
	EventTransitionStart EventKind = "transition_start"
	// EventTransitionEnd fires after the transition delay, once the new
	// data has been applied.
	EventTransitionEnd EventKind = "transition_end"
	// EventLeft fires when a participant disappeared from the snapshot.
	EventLeft EventKind = "left"
)

// Event is one reconciler signal.
type Event struct {
	Kind        EventKind
	UserID      string
	Participant model.Participant
}

// Reconciler merges incoming participant snapshots into the displayed state.
// It is fed from a single channel carrying both push and backstop-poll
// deliveries, so duplicates arrive here and are absorbed by the change check.
type Reconciler struct {
	delay time.Duration
	sleep func(time.Duration)
	emit  func(Event)

	// applyMu serializes Apply end to end; stateMu guards displayed so
	// readers never see a half-applied snapshot.
	applyMu sync.Mutex
	stateMu sync.RWMutex

	displayed map[string]model.Participant
	order     []string
}

// NewReconciler creates a reconciler that emits signals through emit. A nil
// emit drops signals.
func NewReconciler(delay time.Duration, emit func(Event)) *Reconciler {
	if delay <= 0 {
		delay = 150 * time.Millisecond
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Reconciler{
		delay:     delay,
		sleep:     time.Sleep,
		emit:      emit,
		displayed: make(map[string]model.Participant),
	}
}

// changed reports whether the pair the UI keys off actually moved.
func changed(prev, next model.Participant) bool {
	if prev.IsPlaying != next.IsPlaying {
		return true
	}
	switch {
	case prev.TrackID == nil && next.TrackID == nil:
		return false
	case prev.TrackID == nil || next.TrackID == nil:
		return true
	default:
		return *prev.TrackID != *next.TrackID
	}
}

// Apply merges one delivered snapshot. Unchanged entries update silently
// (their recency still advances); new entries apply without transition;
// changed entries signal a transition start, keep the old data through the
// delay, then apply and signal completion.
func (r *Reconciler) Apply(snapshot []model.Participant) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	seen := make(map[string]struct{}, len(snapshot))
	var pending []model.Participant

	r.stateMu.Lock()
	order := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		seen[p.UserID] = struct{}{}
		order = append(order, p.UserID)

		old, known := r.displayed[p.UserID]
		switch {
		case !known:
			r.displayed[p.UserID] = p
			r.emit(Event{Kind: EventApplied, UserID: p.UserID, Participant: p})
		case !changed(old, p):
			// Same (trackId, isPlaying): silent merge keeps metadata and
			// lastUpdatedAt fresh without any visual signal.
			r.displayed[p.UserID] = p
		default:
			pending = append(pending, p)
		}
	}

	for userID, p := range r.displayed {
		if _, ok := seen[userID]; !ok {
			delete(r.displayed, userID)
			r.emit(Event{Kind: EventLeft, UserID: userID, Participant: p})
		}
	}
	r.order = order
	r.stateMu.Unlock()

	if len(pending) == 0 {
		return
	}

	// Two-phase transition: announce, hold the old data for the delay,
	// then apply everything and announce completion.
	for _, p := range pending {
		r.emit(Event{Kind: EventTransitionStart, UserID: p.UserID, Participant: p})
	}

	r.sleep(r.delay)

	r.stateMu.Lock()
	applied := pending[:0]
	for _, p := range pending {
		// A participant can have left during the delay; don't resurrect it.
		if _, stillShown := r.displayed[p.UserID]; stillShown {
			r.displayed[p.UserID] = p
			applied = append(applied, p)
		}
	}
	r.stateMu.Unlock()

	for _, p := range applied {
		r.emit(Event{Kind: EventTransitionEnd, UserID: p.UserID, Participant: p})
	}
}

// Displayed returns the currently displayed snapshot in join order.
func (r *Reconciler) Displayed() []model.Participant {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	out := make([]model.Participant, 0, len(r.order))
	for _, userID := range r.order {
		if p, ok := r.displayed[userID]; ok {
			out = append(out, p)
		}
	}
	return out
}
