package playback

import (
	"context"
	"sync"

	"musicjam/internal/model"
)

// TrackCache memoizes track metadata so a viewer does not refetch the same
// song on every snapshot redelivery.
type TrackCache struct {
	client *Client

	mu     sync.Mutex
	tracks map[string]*model.Track
}

func NewTrackCache(client *Client) *TrackCache {
	return &TrackCache{
		client: client,
		tracks: make(map[string]*model.Track),
	}
}

func (c *TrackCache) GetTrack(ctx context.Context, accessToken, trackID string) (*model.Track, error) {
	c.mu.Lock()
	if track, ok := c.tracks[trackID]; ok {
		c.mu.Unlock()
		return track, nil
	}
	c.mu.Unlock()

	track, err := c.client.GetTrack(ctx, accessToken, trackID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tracks[trackID] = track
	c.mu.Unlock()
	return track, nil
}
