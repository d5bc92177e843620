package service

import (
	"context"
	"fmt"
	"log"

	"musicjam/internal/model"
	"musicjam/internal/notify"
	"musicjam/internal/repository"
)

// PresenceService handles members joining and leaving jams. Both operations
// are idempotent: a page reload re-joins the same row, and leaving twice is
// a no-op.
type PresenceService struct {
	jamSvc          *JamService
	participantRepo repository.ParticipantRepo
	notifier        notify.Notifier
}

func NewPresenceService(jamSvc *JamService, participantRepo repository.ParticipantRepo, notifier notify.Notifier) *PresenceService {
	return &PresenceService{
		jamSvc:          jamSvc,
		participantRepo: participantRepo,
		notifier:        notifier,
	}
}

// Join resolves the code to an active jam and upserts the member's
// participant row with no track and playback stopped.
func (s *PresenceService) Join(ctx context.Context, code string, identity *model.Identity) (*model.Jam, *model.Participant, error) {
	jam, err := s.jamSvc.ResolveActive(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	participant, err := s.participantRepo.Upsert(ctx, jam.ID, identity.UserID, repository.ParticipantFields{
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		TrackID:     nil,
		IsPlaying:   false,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join jam: %w", err)
	}

	s.publishChange(ctx, jam.ID)
	return jam, participant, nil
}

// Leave removes the member's participant row. Absent rows are fine.
func (s *PresenceService) Leave(ctx context.Context, code, userID string) error {
	jam, err := s.jamSvc.ResolveActive(ctx, code)
	if err != nil {
		return err
	}

	if err := s.participantRepo.Delete(ctx, jam.ID, userID); err != nil {
		return fmt.Errorf("failed to leave jam: %w", err)
	}

	s.publishChange(ctx, jam.ID)
	return nil
}

// ListParticipants returns the jam's members ordered by join time.
func (s *PresenceService) ListParticipants(ctx context.Context, code string) ([]model.Participant, error) {
	jam, err := s.jamSvc.ResolveActive(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.participantRepo.ListByJam(ctx, jam.ID)
}

// The store write and the notification are deliberately not atomic; a lost
// notification is corrected by the fan-out's backstop poll.
func (s *PresenceService) publishChange(ctx context.Context, jamID string) {
	if err := s.notifier.PublishChange(ctx, jamID); err != nil {
		log.Printf("[Presence] failed to publish change for jam %s: %v", jamID, err)
	}
}
