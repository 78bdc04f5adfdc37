package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestVerificationStore(t *testing.T) *VerificationStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewVerificationStore(mr.Addr(), "")
	if err != nil {
		t.Fatalf("new verification store: %v", err)
	}
	return s
}

func TestVerificationRoundTrip(t *testing.T) {
	s := newTestVerificationStore(t)
	ctx := context.Background()

	code, err := s.CreateCode(ctx, "alice@example.edu")
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if len(code) != verificationCodeDigits {
		t.Fatalf("expected %d digits, got %q", verificationCodeDigits, code)
	}
	if err := s.Verify(ctx, "alice@example.edu", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// A correct code consumes the challenge.
	if err := s.Verify(ctx, "alice@example.edu", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after consumption, got %v", err)
	}
}

func TestVerificationWrongCode(t *testing.T) {
	s := newTestVerificationStore(t)
	ctx := context.Background()

	code, err := s.CreateCode(ctx, "bob@example.edu")
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if err := s.Verify(ctx, "bob@example.edu", "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
	// The challenge survives a wrong guess.
	if err := s.Verify(ctx, "bob@example.edu", code); err != nil {
		t.Fatalf("verify after wrong guess: %v", err)
	}
}

func TestVerificationAttemptBound(t *testing.T) {
	s := newTestVerificationStore(t)
	ctx := context.Background()

	code, err := s.CreateCode(ctx, "carol@example.edu")
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	for i := 0; i < s.maxAttempts; i++ {
		if err := s.Verify(ctx, "carol@example.edu", "999999"); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
	}
	if err := s.Verify(ctx, "carol@example.edu", code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	// The exhausted challenge is gone.
	if err := s.Verify(ctx, "carol@example.edu", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after deletion, got %v", err)
	}
}

func TestVerificationExpiry(t *testing.T) {
	s := newTestVerificationStore(t)
	s.ttl = time.Millisecond
	ctx := context.Background()

	code, err := s.CreateCode(ctx, "dave@example.edu")
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Verify(ctx, "dave@example.edu", code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestVerificationReplacesOutstandingCode(t *testing.T) {
	s := newTestVerificationStore(t)
	ctx := context.Background()

	first, err := s.CreateCode(ctx, "erin@example.edu")
	if err != nil {
		t.Fatalf("create first code: %v", err)
	}
	second, err := s.CreateCode(ctx, "erin@example.edu")
	if err != nil {
		t.Fatalf("create second code: %v", err)
	}
	if first != second {
		if err := s.Verify(ctx, "erin@example.edu", first); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("expected stale code rejection, got %v", err)
		}
	}
	if err := s.Verify(ctx, "erin@example.edu", second); err != nil {
		t.Fatalf("verify replacement code: %v", err)
	}
}
