package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Invite codes avoid 0/O and 1/I so they survive being read aloud.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewID returns a URL-safe hex string ID for non-entity records such as
// verification challenges.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewInviteCode returns a random classroom invite code of length n.
// Uniqueness is enforced by the store; callers regenerate on collision.
func NewInviteCode(n int) string {
	if n <= 0 {
		n = 8
	}
	max := big.NewInt(int64(len(inviteAlphabet)))
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			idx = big.NewInt(int64(i) % int64(len(inviteAlphabet)))
		}
		code[i] = inviteAlphabet[idx.Int64()]
	}
	return string(code)
}
