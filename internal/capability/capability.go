// Package capability defines the boundary interfaces Chimera's core
// injects at startup: Nix, RemoteExecutor, OrchestratorClient, EventBus,
// and CloudProvider. Core packages depend only on these interfaces;
// concrete implementations live under adapters/ and are wired together
// in cmd/.
package capability

import (
	"context"
	"errors"
	"time"

	"github.com/jbouey/chimera/internal/domain"
)

// ErrBuildFailed is returned by Nix.Build when the build itself fails
// (as opposed to a transport or tooling problem).
var ErrBuildFailed = errors.New("nix: build failed")

// ErrNotInstalled is returned by Nix methods when the nix toolchain is
// not present on the host running the core.
var ErrNotInstalled = errors.New("nix: not installed")

// ErrTransport is returned by RemoteExecutor methods on connection or
// transport-level failure, as opposed to the command itself failing.
var ErrTransport = errors.New("remote executor: transport error")

// CommandError reports a per-node command failure from a RemoteExecutor
// operation that targeted multiple nodes.
type CommandError struct {
	Node domain.Node
	Err  error
}

func (e *CommandError) Error() string {
	return "remote executor: command failed on " + e.Node.String() + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// Nix builds and instantiates Nix configurations. It constructs
// invocation wrappers but does not execute them remotely.
type Nix interface {
	Build(ctx context.Context, path string) (domain.Fingerprint, error)
	Instantiate(ctx context.Context, path string) (string, error)
	Shell(ctx context.Context, path string, command []string) (string, error)
}

// RemoteExecutor fans operations out across nodes concurrently.
type RemoteExecutor interface {
	SyncArtifact(ctx context.Context, nodes []domain.Node, artifactPath string) error
	ExecCommand(ctx context.Context, nodes []domain.Node, command []string) error
	CurrentFingerprint(ctx context.Context, node domain.Node) (*domain.Fingerprint, error)
	Rollback(ctx context.Context, nodes []domain.Node, generation int) error
}

// NodeHealth is the health payload an agent reports to the
// orchestrator.
type NodeHealth struct {
	Node      domain.Node
	Healthy   bool
	Fingerprint domain.Fingerprint
	ReportedAt time.Time
}

// DriftPayload is the drift payload an agent reports to the
// orchestrator.
type DriftPayload struct {
	Node     domain.Node
	Expected domain.Fingerprint
	Actual   *domain.Fingerprint
	Severity string
	Details  string
}

// HealingCommand is a signed, orchestrator-issued remediation command
// fetched by an agent.
type HealingCommand struct {
	ID        string
	NodeHost  string
	Command   []string
	Signature string
	IssuedAt  time.Time
}

// OrchestratorClient is the agent-side capability for talking to the
// orchestrator.
type OrchestratorClient interface {
	ReportHealth(ctx context.Context, health NodeHealth) error
	ReportDrift(ctx context.Context, drift DriftPayload) error
	FetchHealingCommand(ctx context.Context, node domain.Node) (*HealingCommand, error)
	AcknowledgeHealing(ctx context.Context, commandID string, success bool, output string) error
}

// EventBus publishes and subscribes to typed domain events. It is
// satisfied by *journal.Journal and by adapters/pgjournal.
type EventBus interface {
	Publish(events ...Event)
	Subscribe(eventType string, handler func(Event))
}

// Event mirrors journal.Event at the capability boundary so that
// capability.EventBus does not import internal/journal.
type Event struct {
	ID          string
	Type        string
	AggregateID string
	OccurredAt  time.Time
	Payload     interface{}
}

// CloudProvider is a boundary-only capability, not consumed by the
// healing loop or any other core component: it exists so a future
// fleet-discovery component has somewhere to plug in without the core
// importing a specific cloud SDK.
type CloudProvider interface {
	DiscoverNodes(ctx context.Context) ([]domain.Node, error)
	ProvisionNode(ctx context.Context, spec map[string]string) (domain.Node, error)
	DecommissionNode(ctx context.Context, node domain.Node) error
	GetMetadata(ctx context.Context, node domain.Node) (map[string]string, error)
}
