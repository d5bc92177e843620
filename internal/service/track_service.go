package service

import (
	"context"
	"fmt"
	"log"

	"musicjam/internal/model"
	"musicjam/internal/notify"
	"musicjam/internal/repository"
)

// TrackService receives each member's own playback self-reports and writes
// them through to the store.
type TrackService struct {
	jamSvc          *JamService
	participantRepo repository.ParticipantRepo
	notifier        notify.Notifier
}

func NewTrackService(jamSvc *JamService, participantRepo repository.ParticipantRepo, notifier notify.Notifier) *TrackService {
	return &TrackService{
		jamSvc:          jamSvc,
		participantRepo: participantRepo,
		notifier:        notifier,
	}
}

// UpdateTrack upserts the member's current playback state. LastUpdatedAt
// advances even when the track did not change, so liveness can be read off
// recency.
func (s *TrackService) UpdateTrack(ctx context.Context, code string, identity *model.Identity, state model.PlaybackState) (*model.Participant, error) {
	jam, err := s.jamSvc.ResolveActive(ctx, code)
	if err != nil {
		return nil, err
	}

	participant, err := s.participantRepo.Upsert(ctx, jam.ID, identity.UserID, repository.ParticipantFields{
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		TrackID:     state.TrackID,
		IsPlaying:   state.IsPlaying,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update track: %w", err)
	}

	if err := s.notifier.PublishChange(ctx, jam.ID); err != nil {
		log.Printf("[Track] failed to publish change for jam %s: %v", jam.ID, err)
	}
	return participant, nil
}
