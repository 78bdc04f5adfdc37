package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "studyhive:events"
	defaultMaxLen = 10000
)

// RedisPublisher appends envelopes to a capped redis stream. The realtime
// gateway consumes the stream and fans frames out to connected clients.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisPublisherConfig configures the event stream publisher.
type RedisPublisherConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// NewRedisPublisher connects to redis and validates the stream config.
func NewRedisPublisher(cfg RedisPublisherConfig) (*RedisPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = defaultStream
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
		}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Publish appends one envelope to the stream. The data field travels as
// JSON so consumers decode payloads by the type field.
func (p *RedisPublisher) Publish(ctx context.Context, e Envelope) error {
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("envelope type required")
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode envelope data: %w", err)
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type": e.Type,
			"data": string(data),
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// Close releases the redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
