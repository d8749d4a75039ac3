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

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Mode != ModeLocal {
		t.Fatalf("mode = %q, want %q", cfg.Storage.Mode, ModeLocal)
	}
	if cfg.Dispatch.Attempts != 3 {
		t.Fatalf("dispatch attempts = %d, want 3", cfg.Dispatch.Attempts)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  mode: remote
  remote:
    dbname: duo
    call_timeout: 2s
jwt:
  secret: s3cret
calendar:
  timezone: Asia/Shanghai
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Remote.CallTimeout != 2*time.Second {
		t.Fatalf("call timeout = %v, want 2s", cfg.Storage.Remote.CallTimeout)
	}
	if cfg.Storage.Remote.Port != 5432 {
		t.Fatalf("default port lost: %d", cfg.Storage.Remote.Port)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Asia/Shanghai" {
		t.Fatalf("location = %q, want Asia/Shanghai", loc.String())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("DUO_LOG_LEVEL", "warn")
	t.Setenv("DUO_STORAGE_LOCAL_PATH", "/tmp/other.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Storage.Local.Path != "/tmp/other.db" {
		t.Fatalf("local path = %q, want /tmp/other.db", cfg.Storage.Local.Path)
	}
}

func TestLoadRejectsRemoteWithoutSecret(t *testing.T) {
	path := writeConfig(t, "storage:\n  mode: remote\n  remote:\n    dbname: duo\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing jwt secret error")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "storage:\n  mode: cloud\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown mode error")
	}
}
