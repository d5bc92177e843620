package service

import (
	"context"
	"errors"
	"testing"

	"musicjam/internal/model"
)

type recordingEndedBroadcaster struct {
	ended []string
}

func (b *recordingEndedBroadcaster) BroadcastJamEnded(jamID string) {
	b.ended = append(b.ended, jamID)
}

func TestDeactivateIsHostOnly(t *testing.T) {
	ctx := context.Background()
	_, _, jamSvc, _, _, _ := newStack()

	jam, err := jamSvc.CreateJam(ctx, "host-1")
	if err != nil {
		t.Fatalf("CreateJam: %v", err)
	}

	if err := jamSvc.Deactivate(ctx, jam.Code, "someone-else"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host deactivate: err = %v, want ErrNotHost", err)
	}

	resolved, err := jamSvc.ResolveActive(ctx, jam.Code)
	if err != nil || !resolved.IsActive {
		t.Fatalf("jam no longer active after rejected deactivate: %v", err)
	}
}

func TestDeactivateFreesCodeAndAnnounces(t *testing.T) {
	ctx := context.Background()
	jamRepo, _, jamSvc, _, _, _ := newStack()

	broadcaster := &recordingEndedBroadcaster{}
	jamSvc.SetEndedBroadcaster(broadcaster)

	jam, err := jamSvc.CreateJam(ctx, "host-1")
	if err != nil {
		t.Fatalf("CreateJam: %v", err)
	}

	if err := jamSvc.Deactivate(ctx, jam.Code, "host-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	if _, err := jamSvc.ResolveActive(ctx, jam.Code); !errors.Is(err, ErrJamNotFound) {
		t.Fatalf("resolve after deactivate: err = %v, want ErrJamNotFound", err)
	}
	if len(broadcaster.ended) != 1 || broadcaster.ended[0] != jam.ID {
		t.Fatalf("ended broadcasts = %v, want [%s]", broadcaster.ended, jam.ID)
	}

	// The code is released for reuse by a later jam.
	second := jamRepo.seed(jam.Code)
	if !second.IsActive {
		t.Fatal("could not create a new active jam with the released code")
	}
}

func TestDeactivateUnknownCode(t *testing.T) {
	_, _, jamSvc, _, _, _ := newStack()

	err := jamSvc.Deactivate(context.Background(), "NOSUCH", "host-1")
	if !errors.Is(err, ErrJamNotFound) {
		t.Fatalf("err = %v, want ErrJamNotFound", err)
	}
}

// countingCodeRepo records how often the store-side existence check runs.
type countingCodeRepo struct {
	*memJamRepo
	checks int
}

func (r *countingCodeRepo) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	r.checks++
	return r.memJamRepo.ActiveCodeExists(ctx, code)
}

func TestCodeCheckerConsultsCacheFirst(t *testing.T) {
	ctx := context.Background()
	repo := &countingCodeRepo{memJamRepo: newMemJamRepo()}
	jamCache := newMemJamCache()
	checker := &cachedCodeChecker{cache: jamCache, repo: repo}

	jamCache.Set(ctx, &model.Jam{Code: "CACHED", IsActive: true})
	repo.seed("STORED")

	// Cache hit answers without touching the store.
	exists, err := checker.ActiveCodeExists(ctx, "CACHED")
	if err != nil || !exists {
		t.Fatalf("cached code: exists = %v, err = %v", exists, err)
	}
	if repo.checks != 0 {
		t.Fatalf("store checked %d times on a cache hit", repo.checks)
	}

	// Cache miss falls through to the store.
	exists, err = checker.ActiveCodeExists(ctx, "STORED")
	if err != nil || !exists {
		t.Fatalf("stored code: exists = %v, err = %v", exists, err)
	}
	if repo.checks != 1 {
		t.Fatalf("store checks = %d, want 1", repo.checks)
	}

	exists, err = checker.ActiveCodeExists(ctx, "FREE22")
	if err != nil || exists {
		t.Fatalf("free code: exists = %v, err = %v", exists, err)
	}
}

// flakyDeleteCache fails the first n deletes.
type flakyDeleteCache struct {
	*memJamCache
	failsLeft int
	deletes   int
}

func (c *flakyDeleteCache) Delete(ctx context.Context, code string) error {
	c.deletes++
	if c.failsLeft > 0 {
		c.failsLeft--
		return errors.New("connection reset")
	}
	return c.memJamCache.Delete(ctx, code)
}

func TestDeactivateRetriesCacheEviction(t *testing.T) {
	ctx := context.Background()
	jamRepo := newMemJamRepo()
	jamCache := &flakyDeleteCache{memJamCache: newMemJamCache(), failsLeft: 1}
	jamSvc := NewJamService(jamRepo, jamCache)

	jam, err := jamSvc.CreateJam(ctx, "host-1")
	if err != nil {
		t.Fatalf("CreateJam: %v", err)
	}

	if err := jamSvc.Deactivate(ctx, jam.Code, "host-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if jamCache.deletes != 2 {
		t.Fatalf("delete attempts = %d, want 2", jamCache.deletes)
	}

	// The retry cleared the entry, so the cache-first lookup cannot serve
	// the ended jam as active.
	if _, err := jamSvc.ResolveActive(ctx, jam.Code); !errors.Is(err, ErrJamNotFound) {
		t.Fatalf("resolve after deactivate: err = %v, want ErrJamNotFound", err)
	}
}
