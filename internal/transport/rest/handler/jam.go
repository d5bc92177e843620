package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"musicjam/internal/model"
	"musicjam/internal/service"
	"musicjam/internal/transport/rest/middleware"
)

// Narrow views of the services, so tests can swap in fakes.
type jamCreator interface {
	CreateJam(ctx context.Context, hostUserID string) (*model.Jam, error)
	Deactivate(ctx context.Context, code, userID string) error
}

type presenceManager interface {
	Join(ctx context.Context, code string, identity *model.Identity) (*model.Jam, *model.Participant, error)
	Leave(ctx context.Context, code, userID string) error
	ListParticipants(ctx context.Context, code string) ([]model.Participant, error)
}

type trackReporter interface {
	UpdateTrack(ctx context.Context, code string, identity *model.Identity, state model.PlaybackState) (*model.Participant, error)
}

// JamHandler handles jam endpoints
type JamHandler struct {
	jamSvc      jamCreator
	presenceSvc presenceManager
	trackSvc    trackReporter
}

// NewJamHandler creates a new jam handler
func NewJamHandler(jamSvc jamCreator, presenceSvc presenceManager, trackSvc trackReporter) *JamHandler {
	return &JamHandler{
		jamSvc:      jamSvc,
		presenceSvc: presenceSvc,
		trackSvc:    trackSvc,
	}
}

// Create handles POST /v1/jams
func (h *JamHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jam, err := h.jamSvc.CreateJam(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, service.ErrCodeSpaceExhausted) {
			writeError(w, http.StatusServiceUnavailable, "could not allocate a jam code, try again")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create jam")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"jam": jam})
}

// Join handles POST /v1/jams/{code}/join
func (h *JamHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jam, participant, err := h.presenceSvc.Join(r.Context(), code, identity)
	if err != nil {
		if errors.Is(err, service.ErrJamNotFound) {
			writeError(w, http.StatusNotFound, "jam not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to join jam")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jam":         jam,
		"participant": participant,
	})
}

// Leave handles POST /v1/jams/{code}/leave
func (h *JamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.presenceSvc.Leave(r.Context(), code, identity.UserID); err != nil {
		if errors.Is(err, service.ErrJamNotFound) {
			writeError(w, http.StatusNotFound, "jam not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to leave jam")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// updateTrackRequest uses pointer fields so a missing or mistyped value is
// distinguishable from a legitimate null trackId.
type updateTrackRequest struct {
	TrackID   *string `json:"trackId"`
	IsPlaying *bool   `json:"isPlaying"`
}

// UpdateTrack handles POST /v1/jams/{code}/update-track
func (h *JamHandler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsPlaying == nil {
		writeError(w, http.StatusBadRequest, "isPlaying must be a boolean")
		return
	}

	participant, err := h.trackSvc.UpdateTrack(r.Context(), code, identity, model.PlaybackState{
		TrackID:   req.TrackID,
		IsPlaying: *req.IsPlaying,
	})
	if err != nil {
		if errors.Is(err, service.ErrJamNotFound) {
			writeError(w, http.StatusNotFound, "jam not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update track")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"participant": participant})
}

// Participants handles GET /v1/jams/{code}/participants
func (h *JamHandler) Participants(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	participants, err := h.presenceSvc.ListParticipants(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrJamNotFound) {
			writeError(w, http.StatusNotFound, "jam not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"participants": participants})
}

// End handles DELETE /v1/jams/{code}
func (h *JamHandler) End(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.jamSvc.Deactivate(r.Context(), code, identity.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrJamNotFound):
			writeError(w, http.StatusNotFound, "jam not found")
		case errors.Is(err, service.ErrNotHost):
			writeError(w, http.StatusForbidden, "only the host can end a jam")
		default:
			writeError(w, http.StatusInternalServerError, "failed to end jam")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
