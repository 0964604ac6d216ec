// Package config handles Chimera's configuration loading. The agent
// side tolerates a missing or malformed file and falls back to
// defaults, matching the teacher's own config loader; the orchestrator
// side validates required fields and errors loudly, since it is the
// thing signing healing commands for the whole fleet.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbouey/chimera/internal/chimeralog"
)

var log = chimeralog.New("config")

// AgentConfig is the configuration an agent process loads at startup.
// Intervals are expressed in seconds in the YAML file (yaml.v3 does not
// parse Go duration strings natively) and converted to time.Duration on
// load.
type AgentConfig struct {
	NodeID                    string `yaml:"node_id"`
	OrchestratorAddr          string `yaml:"orchestrator_addr"`
	DataDir                   string `yaml:"data_dir"`
	HeartbeatIntervalSeconds  int    `yaml:"heartbeat_interval_seconds"`
	DriftCheckIntervalSeconds int    `yaml:"drift_check_interval_seconds"`
	AutoHeal                  bool   `yaml:"auto_heal"`
	PublicKeyHex              string `yaml:"public_key_hex"`
}

// HeartbeatInterval returns the configured heartbeat interval as a
// time.Duration.
func (c AgentConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// DriftCheckInterval returns the configured drift-check interval as a
// time.Duration.
func (c AgentConfig) DriftCheckInterval() time.Duration {
	return time.Duration(c.DriftCheckIntervalSeconds) * time.Second
}

// DefaultAgentConfig returns the agent's baseline configuration, used
// whenever no file is present or the file fails to parse.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		DataDir:                   "/var/lib/chimera",
		HeartbeatIntervalSeconds:  30,
		DriftCheckIntervalSeconds: 60,
		AutoHeal:                  true,
	}
}

// LoadAgentConfig loads the agent configuration from path. A missing or
// malformed file is not an error: an empty path or a missing file yields
// DefaultAgentConfig silently, and any other read failure or a parse
// failure logs a warning and falls back to DefaultAgentConfig.
func LoadAgentConfig(path string) AgentConfig {
	cfg := DefaultAgentConfig()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARNING: failed to read %s: %v", path, err)
		}
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("WARNING: failed to parse %s: %v", path, err)
		return DefaultAgentConfig()
	}
	return cfg
}

// OrchestratorConfig is the configuration an orchestrator process loads
// at startup.
type OrchestratorConfig struct {
	ListenAddr               string   `yaml:"listen_addr"`
	DatabaseURL              string   `yaml:"database_url"`
	PrivateKeyHex            string   `yaml:"private_key_hex"`
	DriftScanIntervalSeconds int      `yaml:"drift_scan_interval_seconds"`
	Nodes                    []string `yaml:"nodes"`
}

// DriftScanInterval returns the configured drift-scan interval as a
// time.Duration.
func (c OrchestratorConfig) DriftScanInterval() time.Duration {
	return time.Duration(c.DriftScanIntervalSeconds) * time.Second
}

// LoadOrchestratorConfig loads and validates the orchestrator
// configuration from path. Unlike the agent loader, a missing file or a
// missing required field is a hard error: the orchestrator signs
// healing commands for the whole fleet and must not start
// misconfigured.
func LoadOrchestratorConfig(path string) (OrchestratorConfig, error) {
	var cfg OrchestratorConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		return cfg, fmt.Errorf("config: listen_addr is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("config: database_url is required")
	}
	if len(cfg.Nodes) == 0 {
		return cfg, fmt.Errorf("config: at least one node is required")
	}
	if cfg.DriftScanIntervalSeconds <= 0 {
		cfg.DriftScanIntervalSeconds = 60
	}
	return cfg, nil
}
