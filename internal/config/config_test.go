package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AIGW_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 90*time.Second {
		t.Errorf("request timeout = %s, want 90s", cfg.Server.RequestTimeout)
	}
	if cfg.Upstream.CallTimeout != 45*time.Second {
		t.Errorf("call timeout = %s, want 45s", cfg.Upstream.CallTimeout)
	}
	if cfg.Storage.Path != "gateway.db" || cfg.Storage.UsageBackend != "sqlite" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %s", cfg.Redis.Addr)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("AIGW_AUTH_JWT_SECRET", "test-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
storage:
  usage_backend: redis
redis:
  addr: redis.internal:6379
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.UsageBackend != "redis" || cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("storage/redis = %+v / %+v", cfg.Storage, cfg.Redis)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("AIGW_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("AIGW_SERVER_PORT", "7070")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("AIGW_AUTH_JWT_SECRET", "test-secret")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("missing file must fall back to defaults: %v", err)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error without jwt secret")
	}
}

func TestLoad_RejectsUnknownUsageBackend(t *testing.T) {
	t.Setenv("AIGW_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("AIGW_STORAGE_USAGE_BACKEND", "dynamo")

	if _, err := Load(""); err == nil {
		t.Error("expected error for unknown usage backend")
	}
}
