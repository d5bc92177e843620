package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"musicjam/internal/model"
	"musicjam/internal/notify"
	"musicjam/internal/repository"
)

// In-memory stand-ins for Mongo and Redis, mirroring the store invariants
// the services rely on: one active jam per code, one row per (jamId, userId),
// joinedAt ordering, monotonically advancing lastUpdatedAt.

type memJamRepo struct {
	mu   sync.Mutex
	jams map[string]*model.Jam // id -> jam
	seq  int
}

func newMemJamRepo() *memJamRepo {
	return &memJamRepo{jams: make(map[string]*model.Jam)}
}

func (r *memJamRepo) Create(ctx context.Context, jam *model.Jam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jams {
		if existing.Code == jam.Code && existing.IsActive {
			return repository.ErrCodeConflict
		}
	}
	r.seq++
	jam.ID = fmt.Sprintf("jam-%d", r.seq)
	jam.CreatedAt = time.Now()
	jam.IsActive = true
	copied := *jam
	r.jams[jam.ID] = &copied
	return nil
}

func (r *memJamRepo) GetActiveByCode(ctx context.Context, code string) (*model.Jam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, jam := range r.jams {
		if jam.Code == code && jam.IsActive {
			copied := *jam
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memJamRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jam, ok := r.jams[id]; ok {
		jam.IsActive = false
	}
	return nil
}

func (r *memJamRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	jam, _ := r.GetActiveByCode(ctx, code)
	return jam != nil, nil
}

// seed registers an active jam directly, bypassing allocation.
func (r *memJamRepo) seed(code string) *model.Jam {
	jam := &model.Jam{Code: code, HostUserID: "seed-host"}
	r.Create(context.Background(), jam)
	return jam
}

type memParticipantRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Participant // jamID|userID -> row
	seq  int
	// tick delivers strictly increasing timestamps so lastUpdatedAt
	// comparisons are deterministic.
	base time.Time
}

func newMemParticipantRepo() *memParticipantRepo {
	return &memParticipantRepo{
		rows: make(map[string]*model.Participant),
		base: time.Now(),
	}
}

func (r *memParticipantRepo) tick() time.Time {
	r.seq++
	return r.base.Add(time.Duration(r.seq) * time.Millisecond)
}

func key(jamID, userID string) string { return jamID + "|" + userID }

func (r *memParticipantRepo) Upsert(ctx context.Context, jamID, userID string, fields repository.ParticipantFields) (*model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.tick()
	row, ok := r.rows[key(jamID, userID)]
	if !ok {
		row = &model.Participant{
			ID:       "p-" + now.Format("150405.000000"),
			JamID:    jamID,
			UserID:   userID,
			JoinedAt: now,
		}
		r.rows[key(jamID, userID)] = row
	}
	row.DisplayName = fields.DisplayName
	row.AvatarURL = fields.AvatarURL
	row.TrackID = fields.TrackID
	row.IsPlaying = fields.IsPlaying
	row.LastUpdatedAt = now

	copied := *row
	return &copied, nil
}

func (r *memParticipantRepo) Delete(ctx context.Context, jamID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, key(jamID, userID))
	return nil
}

func (r *memParticipantRepo) ListByJam(ctx context.Context, jamID string) ([]model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []model.Participant{}
	for _, row := range r.rows {
		if row.JamID == jamID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *memParticipantRepo) DeleteStale(ctx context.Context, jamID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, row := range r.rows {
		if row.JamID == jamID && row.LastUpdatedAt.Before(cutoff) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

type memJamCache struct {
	mu   sync.Mutex
	jams map[string]model.Jam
}

func newMemJamCache() *memJamCache {
	return &memJamCache{jams: make(map[string]model.Jam)}
}

func (c *memJamCache) Set(ctx context.Context, jam *model.Jam) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jams[jam.Code] = *jam
	return nil
}

func (c *memJamCache) Get(ctx context.Context, code string) (*model.Jam, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if jam, ok := c.jams[code]; ok {
		return &jam, nil
	}
	return nil, nil
}

func (c *memJamCache) Delete(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jams, code)
	return nil
}

func (c *memJamCache) Exists(ctx context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.jams[code]
	return ok, nil
}

type memNotifier struct {
	mu        sync.Mutex
	published []string
}

func (n *memNotifier) PublishChange(ctx context.Context, jamID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, jamID)
	return nil
}

func (n *memNotifier) SubscribeChanges(ctx context.Context, jamID string) (notify.Subscription, error) {
	return nil, errors.New("not used in service tests")
}

func newStack() (*memJamRepo, *memParticipantRepo, *JamService, *PresenceService, *TrackService, *memNotifier) {
	jamRepo := newMemJamRepo()
	participantRepo := newMemParticipantRepo()
	notifier := &memNotifier{}
	jamSvc := NewJamService(jamRepo, newMemJamCache())
	presenceSvc := NewPresenceService(jamSvc, participantRepo, notifier)
	trackSvc := NewTrackService(jamSvc, participantRepo, notifier)
	return jamRepo, participantRepo, jamSvc, presenceSvc, trackSvc, notifier
}
