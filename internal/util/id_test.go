package util

import (
	"strings"
	"testing"
)

func TestNewInviteCodeAlphabetAndLength(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code := NewInviteCode(8)
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(inviteAlphabet, r) {
				t.Fatalf("unexpected character %q in %q", r, code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 90 {
		t.Fatalf("expected mostly unique codes, got %d distinct of 100", len(seen))
	}
}

func TestNewInviteCodeDefaultsLength(t *testing.T) {
	if len(NewInviteCode(0)) != 8 {
		t.Fatalf("expected default length 8")
	}
}
