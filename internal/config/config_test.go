package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAgentConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg := LoadAgentConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if cfg.DataDir != "/var/lib/chimera" {
		t.Fatalf("DataDir = %q, want default", cfg.DataDir)
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Fatalf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval())
	}
}

func TestLoadAgentConfigMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	cfg := LoadAgentConfig(path)
	if cfg.DataDir != "/var/lib/chimera" {
		t.Fatalf("DataDir = %q, want default after malformed config", cfg.DataDir)
	}
}

func TestLoadAgentConfigParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	contents := "node_id: web-1\nheartbeat_interval_seconds: 15\nauto_heal: false\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	cfg := LoadAgentConfig(path)
	if cfg.NodeID != "web-1" {
		t.Fatalf("NodeID = %q, want web-1", cfg.NodeID)
	}
	if cfg.HeartbeatInterval() != 15*time.Second {
		t.Fatalf("HeartbeatInterval = %v, want 15s", cfg.HeartbeatInterval())
	}
	if cfg.AutoHeal {
		t.Fatal("AutoHeal should be false per config override")
	}
}

func TestLoadOrchestratorConfigRequiresFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orch.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := LoadOrchestratorConfig(path); err == nil {
		t.Fatal("expected error due to missing database_url and nodes")
	}
}

func TestLoadOrchestratorConfigMissingFileErrors(t *testing.T) {
	if _, err := LoadOrchestratorConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing orchestrator config file")
	}
}

func TestLoadOrchestratorConfigAppliesDefaultScanInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orch.yaml")
	contents := "listen_addr: \":8080\"\ndatabase_url: \"postgres://localhost/chimera\"\nnodes:\n  - root@web-1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	cfg, err := LoadOrchestratorConfig(path)
	if err != nil {
		t.Fatalf("LoadOrchestratorConfig: %v", err)
	}
	if cfg.DriftScanInterval() != 60*time.Second {
		t.Fatalf("DriftScanInterval = %v, want default 60s", cfg.DriftScanInterval())
	}
}
