// Package playback talks to the external "now playing" API. Each member's
// client samples its own playback with its own access token, which spreads
// the upstream rate-limit pressure across users instead of concentrating it
// on the server.
package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"musicjam/internal/model"
)

var (
	// ErrUnauthorized means the access token was rejected; the member has
	// to re-authenticate with the identity provider.
	ErrUnauthorized = errors.New("playback source rejected the access token")
	// ErrRateLimited means the source is throttling us; skip the cycle.
	ErrRateLimited = errors.New("playback source rate limit hit")
)

// Client fetches a member's current playback from the external source.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// currentlyPlayingResponse mirrors the source's wire format.
type currentlyPlayingResponse struct {
	IsPlaying bool `json:"is_playing"`
	Item      *struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// GetCurrentlyPlaying returns the member's normalized playback state.
// An explicit "nothing playing" (HTTP 204, or a body with no item) comes
// back as a state with a nil TrackID and no error; transport and auth
// failures come back as errors so callers can tell the two apart.
func (c *Client) GetCurrentlyPlaying(ctx context.Context, accessToken string) (model.PlaybackState, error) {
	var state model.PlaybackState

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me/player/currently-playing", nil)
	if err != nil {
		return state, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return state, fmt.Errorf("playback fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		// Nothing playing: a valid state, not an error.
		return state, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return state, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return state, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return state, fmt.Errorf("playback source returned status %d", resp.StatusCode)
	}

	var body currentlyPlayingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return state, fmt.Errorf("failed to decode playback response: %w", err)
	}

	if body.Item == nil || body.Item.ID == "" {
		return state, nil
	}

	trackID := body.Item.ID
	state.TrackID = &trackID
	state.IsPlaying = body.IsPlaying
	return state, nil
}

// GetTrack fetches display metadata for one track.
func (c *Client) GetTrack(ctx context.Context, accessToken, trackID string) (*model.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tracks/"+trackID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("playback source returned status %d", resp.StatusCode)
	}

	var body struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode track response: %w", err)
	}

	track := &model.Track{
		ID:        body.ID,
		Name:      body.Name,
		AlbumName: body.Album.Name,
	}
	for _, a := range body.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(body.Album.Images) > 0 {
		track.AlbumArtURL = body.Album.Images[0].URL
	}
	return track, nil
}
