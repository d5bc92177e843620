package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"musicjam/internal/model"
	"musicjam/internal/repository"
)

type staticChecker struct {
	taken map[string]bool
}

func (c *staticChecker) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	return c.taken[code], nil
}

// everythingTaken simulates a fully collided code space.
type everythingTaken struct{}

func (everythingTaken) ActiveCodeExists(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestGenerateShape(t *testing.T) {
	a := NewCodeAllocator(&staticChecker{})
	for i := 0; i < 100; i++ {
		code, err := a.Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("Generate() = %q, want length %d", code, codeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("Generate() = %q, %q not in alphabet", code, c)
			}
		}
	}
}

func TestAllocateAvoidsActiveCodes(t *testing.T) {
	// Seed the store with many active codes; the allocator must never hand
	// one of them back.
	jamRepo := newMemJamRepo()
	a := NewCodeAllocator(jamRepo)

	seeded := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := a.Generate()
		if err != nil {
			t.Fatal(err)
		}
		if seeded[code] {
			continue
		}
		jamRepo.seed(code)
		seeded[code] = true
	}

	for i := 0; i < 20; i++ {
		code, err := a.Allocate(context.Background())
		if err != nil {
			t.Fatalf("Allocate() error: %v", err)
		}
		if seeded[code] {
			t.Fatalf("Allocate() returned active code %q", code)
		}
	}
}

func TestAllocateExhaustion(t *testing.T) {
	a := NewCodeAllocator(everythingTaken{})
	_, err := a.Allocate(context.Background())
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("Allocate() error = %v, want ErrCodeSpaceExhausted", err)
	}
}

func TestCreateJamRetriesOnInsertConflict(t *testing.T) {
	// The advisory check can race: the repo's insert-time uniqueness is the
	// authority and the service must retry with a fresh code.
	jamRepo := newMemJamRepo()
	jamSvc := NewJamService(jamRepo, newMemJamCache())

	// Force the first insert to collide by making Create fail once.
	raced := &racingJamRepo{memJamRepo: jamRepo, failures: 1}
	jamSvc.jamRepo = raced
	jamSvc.allocator = NewCodeAllocator(raced)

	jam, err := jamSvc.CreateJam(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("CreateJam() error: %v", err)
	}
	if jam.Code == "" || !jam.IsActive {
		t.Fatalf("CreateJam() = %+v, want active jam with code", jam)
	}
	if raced.creates != 2 {
		t.Fatalf("creates = %d, want 2 (one conflict, one success)", raced.creates)
	}
}

type racingJamRepo struct {
	*memJamRepo
	failures int
	creates  int
}

func (r *racingJamRepo) Create(ctx context.Context, jam *model.Jam) error {
	r.creates++
	if r.failures > 0 {
		r.failures--
		return repository.ErrCodeConflict
	}
	return r.memJamRepo.Create(ctx, jam)
}
