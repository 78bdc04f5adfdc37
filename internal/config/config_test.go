package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
redisAddr: localhost:6379
eventStream: studyhive:events
minioEndpoint: localhost:9000
minioBucket: studyhive
jwtPrivateKeyPath: /keys/private.pem
jwtKeyId: active
accessTTL: 20m
refreshTTL: 720h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AccessTokenTTL() != 20*time.Minute {
		t.Fatalf("expected 20m access ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.RefreshTokenTTL() != 720*time.Hour {
		t.Fatalf("expected 720h refresh ttl, got %s", cfg.RefreshTokenTTL())
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
redisAddr: localhost:6379
`)
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" || cfg.RedisPassword != "hunter2" || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidation(t *testing.T) {
	if _, err := Load(writeConfig(t, `logLevel: info`)); err == nil {
		t.Fatalf("expected error for missing redisAddr")
	}
	if _, err := Load(writeConfig(t, `
redisAddr: localhost:6379
jwtPrivateKeyPath: /keys/private.pem
`)); err == nil {
		t.Fatalf("expected error for signing key without key id")
	}
	if _, err := Load(writeConfig(t, `
redisAddr: localhost:6379
accessTTL: soon
`)); err == nil {
		t.Fatalf("expected error for malformed accessTTL")
	}
}

func TestTTLDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `redisAddr: localhost:6379`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTokenTTL() != 15*time.Minute {
		t.Fatalf("expected default access ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.RefreshTokenTTL() != 30*24*time.Hour {
		t.Fatalf("expected default refresh ttl, got %s", cfg.RefreshTokenTTL())
	}
}
