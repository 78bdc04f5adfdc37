package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"studyhive/pkg/oid"
)

// ErrInvalidRefreshToken indicates a refresh token that is unknown,
// expired, or already rotated.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RedisRefreshStore keeps opaque refresh tokens in redis, keyed by hash
// so the raw token never touches storage. Rotation consumes the old
// token atomically, which doubles as replay protection.
type RedisRefreshStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRefreshStore connects to redis for refresh-token persistence.
func NewRedisRefreshStore(addr, password string) *RedisRefreshStore {
	return &RedisRefreshStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "studyhive:auth:refresh",
	}
}

// Issue creates and stores a fresh refresh token for the user.
func (s *RedisRefreshStore) Issue(ctx context.Context, userID oid.ID, ttl time.Duration) (string, error) {
	if userID.IsZero() {
		return "", errors.New("user id required")
	}
	tok, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(tok), userID.String(), ttl).Err(); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return tok, nil
}

// Rotate consumes the presented token and issues a replacement. The
// consume is a single GETDEL, so a replayed token loses the race and
// fails with ErrInvalidRefreshToken.
func (s *RedisRefreshStore) Rotate(ctx context.Context, tok string, ttl time.Duration) (oid.ID, string, error) {
	raw, err := s.client.GetDel(ctx, s.key(tok)).Result()
	if err == redis.Nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("load refresh token: %w", err)
	}
	userID, err := oid.Parse(raw)
	if err != nil || userID.IsZero() {
		return "", "", ErrInvalidRefreshToken
	}
	next, err := s.Issue(ctx, userID, ttl)
	if err != nil {
		return "", "", err
	}
	return userID, next, nil
}

// Revoke deletes the token; revoking an unknown token is a no-op.
func (s *RedisRefreshStore) Revoke(ctx context.Context, tok string) error {
	if err := s.client.Del(ctx, s.key(tok)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) key(tok string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(tok)))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
