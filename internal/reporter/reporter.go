// Package reporter runs the per-member self-report loop: sample the external
// playback source, normalize, and push the result into the jam. Each member
// reports only for itself; the server never holds playback credentials.
package reporter

import (
	"context"
	"log"
	"time"

	"musicjam/internal/model"
)

// Source samples the member's current playback.
type Source interface {
	GetCurrentlyPlaying(ctx context.Context, accessToken string) (model.PlaybackState, error)
}

// Sink receives the normalized state, typically the update-track endpoint
// or the TrackService directly.
type Sink interface {
	Report(ctx context.Context, state model.PlaybackState) error
}

// Reporter is the periodic self-report loop for one joined member.
type Reporter struct {
	source      Source
	sink        Sink
	accessToken string
	interval    time.Duration
}

func New(source Source, sink Sink, accessToken string, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reporter{
		source:      source,
		sink:        sink,
		accessToken: accessToken,
		interval:    interval,
	}
}

// Run reports once immediately and then on every tick until ctx is
// cancelled. A failed cycle is logged and skipped; it never stops the loop
// and never forces a stale write.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Reporter) cycle(ctx context.Context) {
	// Bound each cycle so a hung fetch cannot eat into the next tick.
	cycleCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	state, err := r.source.GetCurrentlyPlaying(cycleCtx, r.accessToken)
	if err != nil {
		// Transient by assumption: the next tick tries again with no
		// partial write in between.
		log.Printf("[Reporter] playback fetch failed, skipping cycle: %v", err)
		return
	}

	if err := r.sink.Report(cycleCtx, state); err != nil {
		log.Printf("[Reporter] report failed, will retry next cycle: %v", err)
	}
}
