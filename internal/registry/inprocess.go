package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jbouey/chimera/internal/capability"
	"github.com/jbouey/chimera/internal/domain"
	"github.com/jbouey/chimera/internal/protocol"
)

// Persister is the subset of adapters/pgjournal.Journal's methods
// InProcessClient needs to durably record fleet history. Declared here
// (rather than importing the adapter) so the core registry package
// never depends on a concrete storage adapter.
type Persister interface {
	RecordDriftEvent(ctx context.Context, nodeID, expected, actual, severity string, detectedAt time.Time, details string) error
	RecordHealingAction(ctx context.Context, nodeID, actionType, command string, success bool, executedAt time.Time, durationSeconds float64, output string) error
}

// InProcessClient is the in-process OrchestratorClient implementation:
// it calls straight into a Registry with no transport in between. The
// remote implementation (serializing calls over whatever transport an
// operator chooses) is a boundary adapter, not part of the core.
type InProcessClient struct {
	registry  *Registry
	persister Persister
	signer    *protocol.Signer
}

// NewInProcessClient constructs an OrchestratorClient backed directly
// by the given Registry. persister may be nil, in which case reports
// update the registry but are not durably recorded.
func NewInProcessClient(registry *Registry, persister Persister) *InProcessClient {
	return &InProcessClient{registry: registry, persister: persister}
}

// WithSigner attaches a Signer so that drift reports queue a signed
// default remediation command for the agent to fetch on its next
// healing-pull cycle. Returns the client for chaining.
func (c *InProcessClient) WithSigner(signer *protocol.Signer) *InProcessClient {
	c.signer = signer
	return c
}

func (c *InProcessClient) ReportHealth(ctx context.Context, health capability.NodeHealth) error {
	c.registry.UpdateHealth(health.Node.Host, health)
	return nil
}

func (c *InProcessClient) ReportDrift(ctx context.Context, drift capability.DriftPayload) error {
	c.registry.UpdateDrift(drift.Node.Host, drift)
	if c.persister != nil {
		actual := "unknown"
		if drift.Actual != nil {
			actual = drift.Actual.String()
		}
		if err := c.persister.RecordDriftEvent(ctx, drift.Node.Host, drift.Expected.String(), actual, drift.Severity, time.Now().UTC(), drift.Details); err != nil {
			return err
		}
	}
	if c.signer != nil {
		c.registry.SetHealingCommand(drift.Node.Host, c.signDefaultCommand(drift.Node.Host))
	}
	return nil
}

// signDefaultCommand builds and signs the standard remediation command
// queued for any drifted node: re-converge to the expected fingerprint
// via the managed systemd target. Playbook-specific commands are a
// future extension of FetchHealingCommand's caller; this is the one
// command every drifted node can always fall back to.
func (c *InProcessClient) signDefaultCommand(nodeHost string) capability.HealingCommand {
	command := []string{"systemctl", "restart", "chimera-managed.target"}
	issuedAt := time.Now().UTC()
	id := uuid.NewString()
	cmd := capability.HealingCommand{ID: id, NodeHost: nodeHost, Command: command, IssuedAt: issuedAt}
	payload, err := protocol.HealingCommandPayload(cmd)
	if err != nil {
		return cmd
	}
	cmd.Signature = c.signer.Sign(payload)
	return cmd
}

func (c *InProcessClient) FetchHealingCommand(ctx context.Context, node domain.Node) (*capability.HealingCommand, error) {
	return c.registry.PopHealingCommand(node.Host), nil
}

func (c *InProcessClient) AcknowledgeHealing(ctx context.Context, commandID string, success bool, output string) error {
	c.registry.AcknowledgeHealing(commandID, success)
	if c.persister != nil {
		if err := c.persister.RecordHealingAction(ctx, commandID, "ACKNOWLEDGE", "", success, time.Now().UTC(), 0, output); err != nil {
			return err
		}
	}
	return nil
}
