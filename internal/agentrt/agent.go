// Package agentrt implements Chimera's agent runtime: three independent
// periodic tasks (heartbeat, drift check, healing pull) driven off a
// single configuration, talking to the orchestrator through the
// OrchestratorClient capability or the on-disk healing-command file.
package agentrt

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/chimeralog"
	"github.com/jbouey/chimera/internal/domain"
	"github.com/jbouey/chimera/internal/protocol"
)

var log = chimeralog.New("agentrt")

// Config is the agent's own configuration, owned for its lifetime.
type Config struct {
	NodeID              string
	Node                domain.Node
	HeartbeatInterval   time.Duration
	DriftCheckInterval  time.Duration
	AutoHeal            bool
}

// ExpectedFingerprintSource resolves the fingerprint the agent's node
// should converge on.
type ExpectedFingerprintSource func(ctx context.Context) (domain.Fingerprint, error)

// CurrentFingerprintSource probes the node's own current fingerprint.
type CurrentFingerprintSource func(ctx context.Context) (*domain.Fingerprint, error)

// Agent runs the three periodic tasks against an OrchestratorClient.
type Agent struct {
	Config              Config
	Client              capability.OrchestratorClient
	ResolveExpected      ExpectedFingerprintSource
	ResolveCurrent       CurrentFingerprintSource
	Verifier             *protocol.Verifier
	status               string
}

// NewAgent constructs an Agent with no Verifier attached; until
// WithVerifier is called, healing commands are executed without a
// signature check.
func NewAgent(cfg Config, client capability.OrchestratorClient, resolveExpected ExpectedFingerprintSource, resolveCurrent CurrentFingerprintSource) *Agent {
	return &Agent{Config: cfg, Client: client, ResolveExpected: resolveExpected, ResolveCurrent: resolveCurrent, status: "HEALTHY"}
}

// WithVerifier attaches a Verifier so fetched healing commands are
// signature-checked before execution. Returns the agent for chaining.
func (a *Agent) WithVerifier(verifier *protocol.Verifier) *Agent {
	a.Verifier = verifier
	return a
}

// RunHeartbeat composes a NodeHealth and reports it every
// HeartbeatInterval until ctx is cancelled.
func (a *Agent) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(a.Config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		a.heartbeatOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) heartbeatOnce(ctx context.Context) {
	expected, err := a.ResolveExpected(ctx)
	if err != nil {
		log.Printf("heartbeat: resolve expected fingerprint: %v", err)
		return
	}
	health := capability.NodeHealth{
		Node:        a.Config.Node,
		Healthy:     a.status != "UNREACHABLE",
		Fingerprint: expected,
		ReportedAt:  time.Now().UTC(),
	}
	if err := a.Client.ReportHealth(ctx, health); err != nil {
		log.Printf("heartbeat: report_health failed, marking UNREACHABLE: %v", err)
		a.status = "UNREACHABLE"
	}
}

// RunDriftCheck compares current vs expected fingerprint every
// DriftCheckInterval until ctx is cancelled, reporting drift when found.
func (a *Agent) RunDriftCheck(ctx context.Context) {
	ticker := time.NewTicker(a.Config.DriftCheckInterval)
	defer ticker.Stop()
	for {
		a.driftCheckOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) driftCheckOnce(ctx context.Context) {
	expected, err := a.ResolveExpected(ctx)
	if err != nil {
		log.Printf("drift check: resolve expected fingerprint: %v", err)
		return
	}
	actual, err := a.ResolveCurrent(ctx)
	if err != nil {
		log.Printf("drift check: resolve current fingerprint: %v", err)
		return
	}
	if actual != nil && actual.Equal(expected) {
		return
	}

	severity := "CRITICAL"
	switch {
	case actual == nil:
		severity = "CRITICAL"
	case actual.IsZero() || actual.String() == domain.ZeroFingerprint:
		severity = "HIGH"
	default:
		severity = "MEDIUM"
	}

	a.status = "DRIFT_DETECTED"
	drift := capability.DriftPayload{
		Node:     a.Config.Node,
		Expected: expected,
		Actual:   actual,
		Severity: severity,
		Details:  "fingerprint mismatch detected by agent",
	}
	if err := a.Client.ReportDrift(ctx, drift); err != nil {
		log.Printf("drift check: report_drift failed: %v", err)
	}
}

// RunHealingPull polls for a pending healing command every second
// until ctx is cancelled.
func (a *Agent) RunHealingPull(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		a.healingPullOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) healingPullOnce(ctx context.Context) {
	cmd, err := a.Client.FetchHealingCommand(ctx, a.Config.Node)
	if err != nil {
		log.Printf("healing pull: fetch failed: %v", err)
		return
	}
	if cmd == nil {
		return
	}
	if a.Verifier != nil {
		payload, perr := protocol.HealingCommandPayload(*cmd)
		if perr != nil || a.Verifier.VerifyCommand(payload, cmd.Signature) != nil {
			log.Printf("healing pull: rejecting command %s: signature verification failed", cmd.ID)
			_ = a.Client.AcknowledgeHealing(ctx, cmd.ID, false, "signature verification failed")
			return
		}
	}
	success, output := a.executeHealingCommand(cmd.Command)
	if err := a.Client.AcknowledgeHealing(ctx, cmd.ID, success, output); err != nil {
		log.Printf("healing pull: acknowledge failed: %v", err)
	}
}

// CheckOnDiskHealingFile is the pull-transport alternative: it looks
// for /var/lib/chimera/healing/heal_<node_id>, validates ownership,
// atomically deletes it to prevent re-execution, then runs it.
func (a *Agent) CheckOnDiskHealingFile(ctx context.Context) {
	path := filepath.Join(HealingDir, "heal_"+a.Config.NodeID)
	if err := validateHealingFile(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("healing file validation failed: %v", err)
		}
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("healing file read failed: %v", err)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Printf("healing file could not be removed, refusing to execute: %v", err)
		return
	}

	cmd := strings.Fields(strings.TrimSpace(string(raw)))
	if len(cmd) == 0 {
		return
	}
	a.executeHealingCommand(cmd)
}

func (a *Agent) executeHealingCommand(command []string) (bool, string) {
	if len(command) == 0 {
		return false, "empty command"
	}
	executable := filepath.Base(command[0])
	if !domain.AllowedCommands[executable] {
		msg := fmt.Sprintf("command %q not in allowlist", executable)
		log.Printf("healing command rejected: %s", msg)
		return false, msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, command[0], command[1:]...).CombinedOutput()
	if err != nil {
		log.Printf("healing command failed: %v", err)
		a.status = "DRIFT_DETECTED"
		return false, string(out)
	}
	log.Printf("healing command succeeded: %s", command[0])
	a.status = "HEALTHY"
	return true, string(out)
}
