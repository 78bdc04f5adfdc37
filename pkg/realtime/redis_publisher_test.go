package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studyhive/pkg/oid"
)

func TestRedisPublisherAppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := NewRedisPublisher(RedisPublisherConfig{Addr: mr.Addr(), Stream: "events:test"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	payload := MemberJoinedPayload{ClassroomID: oid.New(), UserID: oid.New()}
	if err := p.Publish(context.Background(), Envelope{Type: EventMemberJoined, Data: payload}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	entries, err := client.XRange(context.Background(), "events:test", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stream entry, got %d", len(entries))
	}
	if entries[0].Values["type"] != EventMemberJoined {
		t.Fatalf("expected type %q, got %v", EventMemberJoined, entries[0].Values["type"])
	}
	var decoded MemberJoinedPayload
	if err := json.Unmarshal([]byte(entries[0].Values["data"].(string)), &decoded); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if decoded.UserID != payload.UserID {
		t.Fatalf("expected payload round trip, got %+v", decoded)
	}
}

func TestRedisPublisherRejectsEmptyType(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := NewRedisPublisher(RedisPublisherConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if err := p.Publish(context.Background(), Envelope{}); err == nil {
		t.Fatalf("expected error for empty envelope type")
	}
}

func TestNewRedisPublisherRequiresAddr(t *testing.T) {
	if _, err := NewRedisPublisher(RedisPublisherConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}
