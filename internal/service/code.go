package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrCodeSpaceExhausted is returned when every generated candidate collided
// with an active jam within the attempt limit.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique jam code")

// codeAlphabet skips 0/O/1/I so codes survive being read aloud or scribbled.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// ActiveCodeChecker reports whether an active jam currently holds a code.
// The check is advisory: the store's unique index still rejects the insert
// if a race slips a duplicate past it.
type ActiveCodeChecker interface {
	ActiveCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator produces short shareable jam codes with collision checking.
type CodeAllocator struct {
	checker     ActiveCodeChecker
	maxAttempts int
}

func NewCodeAllocator(checker ActiveCodeChecker) *CodeAllocator {
	return &CodeAllocator{
		checker:     checker,
		maxAttempts: 10,
	}
}

// Generate returns one fixed-length code from the unambiguous alphabet.
func (a *CodeAllocator) Generate() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(code), nil
}

// Allocate returns the first generated code with no active collision, or
// ErrCodeSpaceExhausted after the attempt limit.
func (a *CodeAllocator) Allocate(ctx context.Context) (string, error) {
	for attempts := 0; attempts < a.maxAttempts; attempts++ {
		code, err := a.Generate()
		if err != nil {
			return "", err
		}

		exists, err := a.checker.ActiveCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}
