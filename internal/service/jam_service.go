package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"musicjam/internal/cache"
	"musicjam/internal/model"
	"musicjam/internal/repository"
)

var (
	ErrJamNotFound = errors.New("jam not found")
	ErrNotHost     = errors.New("only the host can end a jam")
)

// EndedBroadcaster announces a jam's shutdown to connected viewers.
// Implemented by the WebSocket hub; declared here to keep the import
// direction one-way.
type EndedBroadcaster interface {
	BroadcastJamEnded(jamID string)
}

// JamService handles jam lifecycle: code allocation, creation, lookup.
type JamService struct {
	jamRepo     repository.JamRepo
	jamCache    cache.JamCache
	allocator   *CodeAllocator
	broadcaster EndedBroadcaster

	// createRetries bounds re-allocation when the unique index catches a
	// code race that the advisory check missed.
	createRetries int
}

func NewJamService(jamRepo repository.JamRepo, jamCache cache.JamCache) *JamService {
	return &JamService{
		jamRepo:       jamRepo,
		jamCache:      jamCache,
		allocator:     NewCodeAllocator(&cachedCodeChecker{cache: jamCache, repo: jamRepo}),
		createRetries: 3,
	}
}

// cachedCodeChecker answers the allocator's existence check cache-first. The
// cache only holds active jams, so a hit means the code is taken; a miss or
// a cache error falls through to the store.
type cachedCodeChecker struct {
	cache cache.JamCache
	repo  repository.JamRepo
}

func (c *cachedCodeChecker) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := c.cache.Exists(ctx, code)
	if err != nil {
		log.Printf("[Jam] cache existence check for %s failed: %v", code, err)
	} else if exists {
		return true, nil
	}
	return c.repo.ActiveCodeExists(ctx, code)
}

// SetEndedBroadcaster wires the viewer-facing shutdown announcement. Set
// once at startup, before the service handles requests.
func (s *JamService) SetEndedBroadcaster(b EndedBroadcaster) {
	s.broadcaster = b
}

// CreateJam allocates a unique code and creates an active jam for the host.
func (s *JamService) CreateJam(ctx context.Context, hostUserID string) (*model.Jam, error) {
	var lastErr error
	for attempt := 0; attempt < s.createRetries; attempt++ {
		code, err := s.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		jam := &model.Jam{
			Code:       code,
			HostUserID: hostUserID,
		}
		err = s.jamRepo.Create(ctx, jam)
		if err == nil {
			if cacheErr := s.jamCache.Set(ctx, jam); cacheErr != nil {
				log.Printf("[Jam] failed to cache jam %s: %v", code, cacheErr)
			}
			return jam, nil
		}
		if !errors.Is(err, repository.ErrCodeConflict) {
			return nil, fmt.Errorf("failed to create jam: %w", err)
		}
		// Lost the check-then-insert race; allocate a fresh code.
		log.Printf("[Jam] code %s raced an active jam, retrying", code)
		lastErr = err
	}
	return nil, fmt.Errorf("failed to create jam: %w", lastErr)
}

// ResolveActive resolves a shared code (case-insensitive) to its active jam.
func (s *JamService) ResolveActive(ctx context.Context, code string) (*model.Jam, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	jam, err := s.jamCache.Get(ctx, code)
	if err != nil {
		// Cache trouble must not take down lookup; fall through to the store.
		log.Printf("[Jam] cache lookup for %s failed: %v", code, err)
	}
	if jam != nil && jam.IsActive {
		return jam, nil
	}

	jam, err = s.jamRepo.GetActiveByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up jam: %w", err)
	}
	if jam == nil {
		return nil, ErrJamNotFound
	}

	if cacheErr := s.jamCache.Set(ctx, jam); cacheErr != nil {
		log.Printf("[Jam] failed to cache jam %s: %v", code, cacheErr)
	}
	return jam, nil
}

// Deactivate soft-disables a jam. Only the host may do this; the code
// becomes reusable by a later jam.
func (s *JamService) Deactivate(ctx context.Context, code, userID string) error {
	jam, err := s.ResolveActive(ctx, code)
	if err != nil {
		return err
	}
	if jam.HostUserID != userID {
		return ErrNotHost
	}

	if err := s.jamRepo.Deactivate(ctx, jam.ID); err != nil {
		return fmt.Errorf("failed to deactivate jam: %w", err)
	}
	if err := s.jamCache.Delete(ctx, jam.Code); err != nil {
		log.Printf("[Jam] failed to evict jam %s from cache, retrying: %v", jam.Code, err)
		// A stale entry here would let lookups serve the ended jam as
		// active until the cache TTL runs out.
		if err := s.jamCache.Delete(ctx, jam.Code); err != nil {
			log.Printf("[Jam] eviction retry for jam %s failed: %v", jam.Code, err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastJamEnded(jam.ID)
	}
	return nil
}
