// Package client is the member-side engine: it joins a jam over the REST
// surface, self-reports playback, and feeds delivered snapshots into the
// view reconciler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"musicjam/internal/model"
	"musicjam/internal/service"
)

// API is a thin HTTP client for the jam entry surface.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type joinResponse struct {
	Jam         *model.Jam         `json:"jam"`
	Participant *model.Participant `json:"participant"`
}

func (a *API) CreateJam(ctx context.Context) (*model.Jam, error) {
	var resp struct {
		Jam *model.Jam `json:"jam"`
	}
	if err := a.do(ctx, http.MethodPost, "/v1/jams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jam, nil
}

func (a *API) Join(ctx context.Context, code string) (*model.Jam, *model.Participant, error) {
	var resp joinResponse
	if err := a.do(ctx, http.MethodPost, "/v1/jams/"+code+"/join", nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Jam, resp.Participant, nil
}

func (a *API) Leave(ctx context.Context, code string) error {
	return a.do(ctx, http.MethodPost, "/v1/jams/"+code+"/leave", nil, nil)
}

func (a *API) UpdateTrack(ctx context.Context, code string, state model.PlaybackState) error {
	body := map[string]interface{}{
		"trackId":   state.TrackID,
		"isPlaying": state.IsPlaying,
	}
	return a.do(ctx, http.MethodPost, "/v1/jams/"+code+"/update-track", body, nil)
}

func (a *API) Participants(ctx context.Context, code string) ([]model.Participant, error) {
	var resp struct {
		Participants []model.Participant `json:"participants"`
	}
	if err := a.do(ctx, http.MethodGet, "/v1/jams/"+code+"/participants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return service.ErrJamNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
