package playback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGetCurrentlyPlayingNormalizesResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantTrackID string
		wantPlaying bool
		wantErr     error
	}{
		{
			name:        "playing a track",
			status:      http.StatusOK,
			body:        `{"is_playing": true, "item": {"id": "T1", "name": "Song"}}`,
			wantTrackID: "T1",
			wantPlaying: true,
		},
		{
			name:   "paused with no item",
			status: http.StatusOK,
			body:   `{"is_playing": false, "item": null}`,
		},
		{
			name:   "explicitly nothing playing",
			status: http.StatusNoContent,
		},
		{
			name:    "expired token",
			status:  http.StatusUnauthorized,
			body:    `{"error": "token expired"}`,
			wantErr: ErrUnauthorized,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			wantErr: ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/me/player/currently-playing" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer tok" {
					t.Errorf("missing bearer token")
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			state, err := c.GetCurrentlyPlaying(context.Background(), "tok")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantTrackID == "" {
				if state.TrackID != nil {
					t.Fatalf("TrackID = %q, want nil", *state.TrackID)
				}
				if state.IsPlaying {
					t.Fatal("IsPlaying = true, want false")
				}
				return
			}
			if state.TrackID == nil || *state.TrackID != tt.wantTrackID {
				t.Fatalf("TrackID = %v, want %q", state.TrackID, tt.wantTrackID)
			}
			if state.IsPlaying != tt.wantPlaying {
				t.Fatalf("IsPlaying = %v, want %v", state.IsPlaying, tt.wantPlaying)
			}
		})
	}
}

func TestGetTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracks/T1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "T1",
			"name": "Song",
			"artists": [{"name": "Ana"}, {"name": "Ben"}],
			"album": {"name": "Album", "images": [{"url": "http://img/cover.jpg"}]}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	track, err := c.GetTrack(context.Background(), "tok", "T1")
	if err != nil {
		t.Fatal(err)
	}
	if track.Name != "Song" || len(track.Artists) != 2 || track.AlbumArtURL != "http://img/cover.jpg" {
		t.Fatalf("track = %+v", track)
	}
}

func TestTrackCacheFetchesOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"id": "T1", "name": "Song", "album": {"name": "Album"}}`))
	}))
	defer srv.Close()

	cache := NewTrackCache(NewClient(srv.URL))
	for i := 0; i < 5; i++ {
		track, err := cache.GetTrack(context.Background(), "tok", "T1")
		if err != nil {
			t.Fatal(err)
		}
		if track.Name != "Song" {
			t.Fatalf("track = %+v", track)
		}
	}

	if hits.Load() != 1 {
		t.Fatalf("upstream fetched %d times, want 1", hits.Load())
	}
}
