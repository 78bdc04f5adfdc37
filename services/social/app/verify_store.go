package app

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationCodeDigits = 6
	verificationCodeTTL    = 10 * time.Minute
	maxVerifyAttempts      = 5
)

// VerificationStore keeps email-verification challenges in redis. Only a
// bcrypt hash of the code is stored; the plaintext goes to the mail
// collaborator and is never persisted.
type VerificationStore struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

type verificationChallenge struct {
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

// NewVerificationStore connects to redis for verification challenges.
func NewVerificationStore(addr, password string) (*VerificationStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("verification redis addr required")
	}
	return &VerificationStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix:      "studyhive:social:verify",
		ttl:         verificationCodeTTL,
		maxAttempts: maxVerifyAttempts,
	}, nil
}

// CreateCode issues a fresh challenge for the address, replacing any
// outstanding one, and returns the plaintext code for delivery.
func (s *VerificationStore) CreateCode(ctx context.Context, email string) (string, error) {
	code, err := randomDigits(verificationCodeDigits)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash verification code: %w", err)
	}
	challenge := verificationChallenge{
		CodeHash:  string(hash),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	data, err := json.Marshal(challenge)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(email), data, s.ttl+time.Minute).Err(); err != nil {
		return "", fmt.Errorf("store verification challenge: %w", err)
	}
	return code, nil
}

// Verify checks the code against the outstanding challenge. Attempts are
// bounded; a correct code consumes the challenge.
func (s *VerificationStore) Verify(ctx context.Context, email, code string) error {
	key := s.key(email)
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCodeInvalid
	}
	if err != nil {
		return fmt.Errorf("load verification challenge: %w", err)
	}
	var challenge verificationChallenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return fmt.Errorf("decode verification challenge: %w", err)
	}
	if time.Now().UTC().After(challenge.ExpiresAt) {
		s.client.Del(ctx, key)
		return ErrCodeExpired
	}
	challenge.Attempts++
	if challenge.Attempts > s.maxAttempts {
		s.client.Del(ctx, key)
		return ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		if data, err := json.Marshal(challenge); err == nil {
			s.client.Set(ctx, key, data, redis.KeepTTL)
		}
		return ErrCodeInvalid
	}
	s.client.Del(ctx, key)
	return nil
}

func (s *VerificationStore) key(email string) string {
	return s.prefix + ":" + strings.ToLower(strings.TrimSpace(email))
}

func randomDigits(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		sb.WriteString(d.String())
	}
	return sb.String(), nil
}
